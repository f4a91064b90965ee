package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"net2077-arena-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ArenaService orchestrates the 1v1 match lifecycle:
// create → join (waiting→active) → answers → finish (active→finished),
// with cancel as the exit from the waiting room.
type ArenaService struct {
	DB          *gorm.DB
	Questions   *QuestionService
	Progression *ProgressionService
}

func NewArenaService(db *gorm.DB, questions *QuestionService, progression *ProgressionService) *ArenaService {
	return &ArenaService{DB: db, Questions: questions, Progression: progression}
}

const matchCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const matchCodeLength = 6

// Top-level rand is safe for concurrent creates; a *rand.Rand would not be.
func generateMatchCode() string {
	b := make([]byte, matchCodeLength)
	for i := range b {
		b[i] = matchCodeAlphabet[rand.Intn(len(matchCodeAlphabet))]
	}
	return string(b)
}

// QuestionView is a question as shown to players: no correct answers.
type QuestionView struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
	Points   int      `json:"points"`
}

// MatchDetail is a match plus the populated participants, and — for
// participants of an active or finished match — the question sheet.
type MatchDetail struct {
	models.Match
	Creator         *models.ArenaUser `json:"creator,omitempty"`
	Opponent        *models.ArenaUser `json:"opponent,omitempty"`
	QuestionIDs     []string          `json:"question_ids"`
	Questions       []QuestionView    `json:"questions,omitempty"`
	CreatorAnswers  models.AnswerMap  `json:"creator_answers"`
	OpponentAnswers models.AnswerMap  `json:"opponent_answers"`
}

// MatchResult is the stable outcome payload of finish: calling finish again
// on the same match returns the identical result.
type MatchResult struct {
	Match         *MatchDetail `json:"match"`
	CreatorScore  int          `json:"creator_score"`
	OpponentScore int          `json:"opponent_score"`
	WinnerID      *string      `json:"winner_id,omitempty"`
}

func (s *ArenaService) lookupUser(externalUserID string) *models.ArenaUser {
	var u models.ArenaUser
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&u).Error; err != nil {
		return nil // mirror not synced yet — payload carries the raw id only
	}
	return &u
}

func (s *ArenaService) detail(m *models.Match, includeQuestions bool) *MatchDetail {
	d := &MatchDetail{
		Match:           *m,
		Creator:         s.lookupUser(m.CreatorID),
		QuestionIDs:     m.QuestionIDs(),
		CreatorAnswers:  m.CreatorAnswers(),
		OpponentAnswers: m.OpponentAnswers(),
	}
	if m.OpponentID != nil {
		d.Opponent = s.lookupUser(*m.OpponentID)
	}
	if includeQuestions {
		questions, err := s.Questions.ByIDs(m.QuestionIDs())
		if err != nil {
			log.Printf("❌ [ARENA] failed to load questions for match %s: %v", m.MatchCode, err)
		}
		for _, q := range questions {
			d.Questions = append(d.Questions, QuestionView{
				ID:       q.ID,
				Category: q.Category,
				Text:     q.Text,
				Options:  q.Options(),
				Points:   q.Points,
			})
		}
	}
	return d
}

func (s *ArenaService) byCode(code string) (*models.Match, error) {
	var m models.Match
	err := s.DB.Where("match_code = ?", strings.ToUpper(code)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMatch validates the request, samples the question sheet and persists
// a fresh waiting match. The creator may hold at most one waiting match.
func (s *ArenaService) CreateMatch(creatorID, category string, questionCount int, mode, visibility string) (*MatchDetail, error) {
	duration := models.DurationForCount(questionCount)
	if duration == 0 {
		return nil, fmt.Errorf("%w: question count must be 10, 20 or 30", ErrValidation)
	}
	if category != models.CategoryLinux && category != models.CategoryNetwork {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}
	if mode == "" {
		mode = models.MatchModeNormal
	}
	if mode != models.MatchModeNormal && mode != models.MatchModeBloody {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrValidation, mode)
	}
	if visibility == "" {
		visibility = models.MatchVisibilityPublic
	}
	if visibility != models.MatchVisibilityPublic && visibility != models.MatchVisibilityPrivate {
		return nil, fmt.Errorf("%w: unknown visibility %q", ErrValidation, visibility)
	}

	var waitingCount int64
	if err := s.DB.Model(&models.Match{}).
		Where("creator_id = ? AND status = ?", creatorID, models.MatchStatusWaiting).
		Count(&waitingCount).Error; err != nil {
		return nil, err
	}
	if waitingCount > 0 {
		return nil, ErrAlreadyWaiting
	}

	questionIDs, err := s.Questions.Sample(category, questionCount)
	if err != nil {
		return nil, err
	}

	m := &models.Match{
		ID:            uuid.NewString(),
		CreatorID:     creatorID,
		Category:      category,
		QuestionCount: questionCount,
		Duration:      duration,
		Mode:          mode,
		Visibility:    visibility,
		Status:        models.MatchStatusWaiting,
	}
	m.SetQuestionIDs(questionIDs)
	m.SetCreatorAnswers(models.AnswerMap{})
	m.SetOpponentAnswers(models.AnswerMap{})

	// 36^6 codes make collisions negligible, but the unique index is the
	// source of truth: regenerate on a duplicate-key create.
	for attempt := 0; ; attempt++ {
		m.MatchCode = generateMatchCode()
		err := s.DB.Create(m).Error
		if err == nil {
			break
		}
		if isDuplicateKey(err) && attempt < 4 {
			continue
		}
		return nil, err
	}

	log.Printf("⚔️ [ARENA] Match %s created by %s (%s, %d questions, %s mode)",
		m.MatchCode, creatorID, category, questionCount, mode)
	return s.detail(m, false), nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// driver-specific fallbacks: postgres 23505 / sqlite UNIQUE
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "UNIQUE constraint")
}

// JoinMatch is the sole waiting→active transition. The opponent slot is taken
// with one conditional UPDATE ("set opponent only if still null") so the
// second of two racing joiners observes ErrMatchFull, never a silent overwrite.
func (s *ArenaService) JoinMatch(code, userID string) (*MatchDetail, error) {
	m, err := s.byCode(code)
	if err != nil {
		return nil, err
	}
	if m.CreatorID == userID {
		return nil, fmt.Errorf("%w: cannot join your own match", ErrForbidden)
	}
	// A taken slot is always Conflict, whether the joiner lost the race
	// or came long after it.
	if m.OpponentID != nil {
		return nil, ErrMatchFull
	}
	if m.Status != models.MatchStatusWaiting {
		return nil, fmt.Errorf("%w: match is %s", ErrInvalidState, m.Status)
	}

	now := time.Now()
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status = ? AND opponent_id IS NULL", m.ID, models.MatchStatusWaiting).
		Updates(map[string]interface{}{
			"opponent_id": userID,
			"status":      models.MatchStatusActive,
			"started_at":  now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race: re-read to tell "full" from "cancelled meanwhile".
		current, err := s.byCode(code)
		if err != nil {
			return nil, err
		}
		if current.OpponentID != nil {
			return nil, ErrMatchFull
		}
		return nil, fmt.Errorf("%w: match is %s", ErrInvalidState, current.Status)
	}

	m.OpponentID = &userID
	m.Status = models.MatchStatusActive
	m.StartedAt = &now

	log.Printf("⚔️ [ARENA] %s joined match %s — match is live", userID, m.MatchCode)
	return s.detail(m, true), nil
}

// CancelMatch deletes a waiting match. Creator only.
func (s *ArenaService) CancelMatch(code, userID string) error {
	m, err := s.byCode(code)
	if err != nil {
		return err
	}
	if m.CreatorID != userID {
		return fmt.Errorf("%w: only the creator can cancel", ErrForbidden)
	}
	if m.Status != models.MatchStatusWaiting {
		return fmt.Errorf("%w: match is %s", ErrInvalidState, m.Status)
	}
	// A cancelled waiting room is not a historical record — hard delete.
	if err := s.DB.Unscoped().Delete(m).Error; err != nil {
		return err
	}
	log.Printf("🗑️ [ARENA] Match %s cancelled by creator", m.MatchCode)
	return nil
}

// SubmitAnswer records selectedOptions under the submitting side's answer map,
// keyed by question id. Resubmission overwrites: last write wins per question.
// Correctness is not evaluated here — scoring happens once, at finish.
func (s *ArenaService) SubmitAnswer(code, userID, questionID string, selectedOptions []int) error {
	m, err := s.byCode(code)
	if err != nil {
		return err
	}
	if m.Status != models.MatchStatusActive {
		return fmt.Errorf("%w: match is %s", ErrInvalidState, m.Status)
	}
	if !m.IsParticipant(userID) {
		return fmt.Errorf("%w: not a participant of this match", ErrForbidden)
	}

	onSheet := false
	for _, id := range m.QuestionIDs() {
		if id == questionID {
			onSheet = true
			break
		}
	}
	if !onSheet {
		return fmt.Errorf("%w: question %s is not part of this match", ErrValidation, questionID)
	}
	if selectedOptions == nil {
		selectedOptions = []int{}
	}

	// Each side writes its own column, so the two players never conflict.
	column := "creator_answers_json"
	answers := m.CreatorAnswers()
	if m.OpponentID != nil && *m.OpponentID == userID {
		column = "opponent_answers_json"
		answers = m.OpponentAnswers()
	}
	answers[questionID] = selectedOptions

	b, _ := json.Marshal(answers)
	return s.DB.Model(&models.Match{}).
		Where("id = ? AND status = ?", m.ID, models.MatchStatusActive).
		Update(column, string(b)).Error
}

// FinishMatch closes an active match: scores both sides, picks the winner and
// distributes XP. Idempotent — a finished match returns its stored result and
// performs no further XP mutation, so racing finish calls from both players
// around the deadline cannot double-award.
func (s *ArenaService) FinishMatch(code, userID string) (*MatchResult, error) {
	m, err := s.byCode(code)
	if err != nil {
		return nil, err
	}
	if m.Status == models.MatchStatusFinished {
		return s.storedResult(m), nil
	}
	if !m.IsParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this match", ErrForbidden)
	}
	if m.Status != models.MatchStatusActive {
		return nil, fmt.Errorf("%w: match is %s", ErrInvalidState, m.Status)
	}
	return s.finalize(m)
}

// finalize runs the single active→finished transition and, when it wins that
// race, applies the reward distribution. Shared by FinishMatch and the
// overdue-match sweep.
func (s *ArenaService) finalize(m *models.Match) (*MatchResult, error) {
	questions, err := s.Questions.ByIDs(m.QuestionIDs())
	if err != nil {
		return nil, err
	}

	creatorScore := scoreSide(m.CreatorAnswers(), questions)
	opponentScore := 0
	if m.OpponentID != nil {
		opponentScore = scoreSide(m.OpponentAnswers(), questions)
	}
	winnerID := matchWinner(m, creatorScore, opponentScore)

	now := time.Now()
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status = ?", m.ID, models.MatchStatusActive).
		Updates(map[string]interface{}{
			"status":         models.MatchStatusFinished,
			"creator_score":  creatorScore,
			"opponent_score": opponentScore,
			"winner_id":      winnerID,
			"finished_at":    now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// The other player's finish call won — read back their result.
		stored, err := s.byCode(m.MatchCode)
		if err != nil {
			return nil, err
		}
		return s.storedResult(stored), nil
	}

	m.Status = models.MatchStatusFinished
	m.CreatorScore = creatorScore
	m.OpponentScore = opponentScore
	m.WinnerID = winnerID
	m.FinishedAt = &now

	s.applyRewards(m)

	log.Printf("🏁 [ARENA] Match %s finished: %d–%d (%s mode)",
		m.MatchCode, creatorScore, opponentScore, m.Mode)
	return s.storedResult(m), nil
}

func (s *ArenaService) applyRewards(m *models.Match) {
	creatorXP, opponentXP := distributeXP(m.Mode, m.CreatorScore, m.OpponentScore)

	if creatorXP > 0 {
		if _, err := s.Progression.AwardXP(m.CreatorID, creatorXP, "arena_"+m.MatchCode); err != nil {
			log.Printf("❌ [ARENA] XP award failed for %s: %v", m.CreatorID, err)
		}
	}
	if m.OpponentID != nil && opponentXP > 0 {
		if _, err := s.Progression.AwardXP(*m.OpponentID, opponentXP, "arena_"+m.MatchCode); err != nil {
			log.Printf("❌ [ARENA] XP award failed for %s: %v", *m.OpponentID, err)
		}
	}

	creatorWon := m.WinnerID != nil && *m.WinnerID == m.CreatorID
	if err := s.Progression.RecordMatchPlayed(m.CreatorID, creatorWon); err != nil {
		log.Printf("❌ [ARENA] counter update failed for %s: %v", m.CreatorID, err)
	}
	if m.OpponentID != nil {
		opponentWon := m.WinnerID != nil && *m.WinnerID == *m.OpponentID
		if err := s.Progression.RecordMatchPlayed(*m.OpponentID, opponentWon); err != nil {
			log.Printf("❌ [ARENA] counter update failed for %s: %v", *m.OpponentID, err)
		}
	}
}

func (s *ArenaService) storedResult(m *models.Match) *MatchResult {
	return &MatchResult{
		Match:         s.detail(m, true),
		CreatorScore:  m.CreatorScore,
		OpponentScore: m.OpponentScore,
		WinnerID:      m.WinnerID,
	}
}

// GetByCode returns the full match for a participant. The client poller hits
// this every couple of seconds to observe waiting→active→finished.
func (s *ArenaService) GetByCode(code, userID string) (*MatchDetail, error) {
	m, err := s.byCode(code)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this match", ErrForbidden)
	}
	return s.detail(m, m.Status != models.MatchStatusWaiting), nil
}

// ListAvailable returns public waiting matches other users can join.
func (s *ArenaService) ListAvailable(excludingUserID string) ([]*MatchDetail, error) {
	var matches []models.Match
	err := s.DB.
		Where("status = ? AND visibility = ? AND creator_id <> ?",
			models.MatchStatusWaiting, models.MatchVisibilityPublic, excludingUserID).
		Order("created_at DESC").
		Limit(50).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	out := make([]*MatchDetail, 0, len(matches))
	for i := range matches {
		out = append(out, s.detail(&matches[i], false))
	}
	return out, nil
}

// GetMyWaiting returns the caller's own waiting match, or nil when none exists.
func (s *ArenaService) GetMyWaiting(userID string) (*MatchDetail, error) {
	var m models.Match
	err := s.DB.
		Where("creator_id = ? AND status = ?", userID, models.MatchStatusWaiting).
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.detail(&m, false), nil
}
