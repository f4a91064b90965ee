package services

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"net2077-arena-system/models"
	"net2077-arena-system/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type QuestionService struct {
	DB *gorm.DB
}

func NewQuestionService(db *gorm.DB) *QuestionService {
	return &QuestionService{DB: db}
}

// Sample draws exactly count distinct question ids at random from the
// category's pool. Returns ErrInsufficientPool when the pool is too small.
func (s *QuestionService) Sample(category string, count int) ([]string, error) {
	var ids []string
	if err := s.DB.Model(&models.Question{}).
		Where("category = ?", category).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) < count {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientPool, len(ids), count)
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids[:count], nil
}

// ByIDs loads the given questions, preserving the requested order.
func (s *QuestionService) ByIDs(ids []string) ([]models.Question, error) {
	var questions []models.Question
	if err := s.DB.Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

// Create inserts one hand-authored question.
func (s *QuestionService) Create(category, text string, options []string, correctAnswers []int, points int) (*models.Question, error) {
	if category != models.CategoryLinux && category != models.CategoryNetwork {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}
	if len(options) < 2 || len(correctAnswers) == 0 {
		return nil, fmt.Errorf("%w: a question needs at least 2 options and 1 correct answer", ErrValidation)
	}
	for _, idx := range correctAnswers {
		if idx < 0 || idx >= len(options) {
			return nil, fmt.Errorf("%w: correct answer index %d out of range", ErrValidation, idx)
		}
	}
	if points <= 0 {
		points = 1
	}

	q := &models.Question{
		ID:       uuid.NewString(),
		Category: category,
		Text:     text,
		Points:   points,
	}
	q.SetOptions(options)
	q.SetCorrectAnswers(correctAnswers)

	if err := s.DB.Create(q).Error; err != nil {
		return nil, err
	}
	return q, nil
}

// CategoryCounts returns the pool size per category, so clients can grey out
// question counts a category cannot satisfy.
func (s *QuestionService) CategoryCounts() (map[string]int64, error) {
	counts := map[string]int64{}
	for _, cat := range []string{models.CategoryLinux, models.CategoryNetwork} {
		var n int64
		if err := s.DB.Model(&models.Question{}).Where("category = ?", cat).Count(&n).Error; err != nil {
			return nil, err
		}
		counts[cat] = n
	}
	return counts, nil
}

// questionPack is the R2 interchange format for bulk question import/export.
type questionPack struct {
	Name      string `json:"name"`
	Questions []struct {
		Category       string   `json:"category"`
		Text           string   `json:"text"`
		Options        []string `json:"options"`
		CorrectAnswers []int    `json:"correct_answers"`
		Points         int      `json:"points"`
	} `json:"questions"`
}

// ImportPack downloads a question pack (JSON) from R2 by object key and
// inserts its questions in one transaction. Returns the pack slug and the
// number of questions imported.
func (s *QuestionService) ImportPack(key string) (string, int, error) {
	raw, err := utils.DownloadFromR2(key)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fetch pack %s: %w", key, err)
	}

	var pack questionPack
	if err := json.Unmarshal(raw, &pack); err != nil {
		return "", 0, fmt.Errorf("%w: pack %s is not valid JSON", ErrValidation, key)
	}
	if pack.Name == "" || len(pack.Questions) == 0 {
		return "", 0, fmt.Errorf("%w: pack needs a name and at least one question", ErrValidation)
	}

	packSlug := slug.Make(pack.Name)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for i, pq := range pack.Questions {
			if pq.Category != models.CategoryLinux && pq.Category != models.CategoryNetwork {
				return fmt.Errorf("%w: question %d has unknown category %q", ErrValidation, i, pq.Category)
			}
			if len(pq.Options) < 2 || len(pq.CorrectAnswers) == 0 {
				return fmt.Errorf("%w: question %d is malformed", ErrValidation, i)
			}
			q := models.Question{
				ID:       uuid.NewString(),
				Category: pq.Category,
				Text:     pq.Text,
				Points:   pq.Points,
				PackSlug: packSlug,
			}
			if q.Points <= 0 {
				q.Points = 1
			}
			q.SetOptions(pq.Options)
			q.SetCorrectAnswers(pq.CorrectAnswers)
			if err := tx.Create(&q).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}

	return packSlug, len(pack.Questions), nil
}

// ExportPack serializes the whole bank (or one category) back to R2 and
// returns the object key written.
func (s *QuestionService) ExportPack(name, category string) (string, int, error) {
	q := s.DB.Model(&models.Question{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var questions []models.Question
	if err := q.Order("created_at ASC").Find(&questions).Error; err != nil {
		return "", 0, err
	}

	pack := questionPack{Name: name}
	for _, record := range questions {
		pack.Questions = append(pack.Questions, struct {
			Category       string   `json:"category"`
			Text           string   `json:"text"`
			Options        []string `json:"options"`
			CorrectAnswers []int    `json:"correct_answers"`
			Points         int      `json:"points"`
		}{
			Category:       record.Category,
			Text:           record.Text,
			Options:        record.Options(),
			CorrectAnswers: record.CorrectAnswers(),
			Points:         record.Points,
		})
	}

	payload, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return "", 0, err
	}

	key := fmt.Sprintf("question-packs/%s-%s.json", slug.Make(name), time.Now().Format("20060102-150405"))
	if _, err := utils.UploadBytesToR2(payload, key, "application/json"); err != nil {
		return "", 0, err
	}
	return key, len(pack.Questions), nil
}
