package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"net2077-arena-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	// single connection so the in-memory DB survives the pool
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Match{},
		&models.Question{},
		&models.UserProgress{},
		&models.ArenaUser{},
		&models.BadgeType{},
		&models.UserBadge{},
	))
	return db
}

func newTestArena(t *testing.T) (*ArenaService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	questions := NewQuestionService(db)
	progression := NewProgressionService(db)
	return NewArenaService(db, questions, progression), db
}

func seedQuestions(t *testing.T, db *gorm.DB, category string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		q := models.Question{
			ID:       uuid.NewString(),
			Category: category,
			Text:     fmt.Sprintf("%s question %d", category, i),
			Points:   1,
		}
		q.SetOptions([]string{"a", "b", "c", "d"})
		q.SetCorrectAnswers([]int{0})
		require.NoError(t, db.Create(&q).Error)
	}
}

// seedMatch inserts an active two-player match over explicit questions,
// bypassing the 10/20/30 creation rule so scoring paths can be exercised
// with small hand-built sheets.
func seedMatch(t *testing.T, db *gorm.DB, mode string, questions []models.Question) *models.Match {
	t.Helper()
	for i := range questions {
		require.NoError(t, db.Create(&questions[i]).Error)
	}
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	opponent := "opponent-1"
	now := time.Now()
	m := &models.Match{
		ID:            uuid.NewString(),
		MatchCode:     generateMatchCode(),
		CreatorID:     "creator-1",
		OpponentID:    &opponent,
		Category:      models.CategoryLinux,
		QuestionCount: len(questions),
		Duration:      120,
		Mode:          mode,
		Visibility:    models.MatchVisibilityPublic,
		Status:        models.MatchStatusActive,
		StartedAt:     &now,
	}
	m.SetQuestionIDs(ids)
	m.SetCreatorAnswers(models.AnswerMap{})
	m.SetOpponentAnswers(models.AnswerMap{})
	require.NoError(t, db.Create(m).Error)
	return m
}

func userXP(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var prog models.UserProgress
	err := db.Where("external_user_id = ?", userID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0
	}
	require.NoError(t, err)
	return prog.XP
}

func TestCreateMatchSamplesSheetAndDuration(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryLinux, 30)

	tests := []struct {
		count    int
		duration int
	}{
		{10, 120},
		{20, 240},
		{30, 360},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("count %d", tt.count), func(t *testing.T) {
			creator := fmt.Sprintf("creator-%d", tt.count)
			match, err := svc.CreateMatch(creator, models.CategoryLinux, tt.count, "", "")
			require.NoError(t, err)

			require.Len(t, match.QuestionIDs, tt.count)
			require.Equal(t, tt.duration, match.Duration)
			require.Equal(t, models.MatchStatusWaiting, match.Status)
			require.Len(t, match.MatchCode, 6)
			require.Nil(t, match.OpponentID)

			// distinct questions
			seen := map[string]bool{}
			for _, id := range match.QuestionIDs {
				require.False(t, seen[id], "duplicate question %s in sheet", id)
				seen[id] = true
			}
		})
	}
}

func TestCreateMatchRejectsBadQuestionCount(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryLinux, 30)

	for _, count := range []int{0, 5, 15, 100} {
		_, err := svc.CreateMatch("creator-1", models.CategoryLinux, count, "", "")
		require.ErrorIs(t, err, ErrValidation, "count %d should be rejected", count)
	}
}

func TestCreateMatchInsufficientPool(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryNetwork, 9)

	_, err := svc.CreateMatch("creator-1", models.CategoryNetwork, 10, "", "")
	require.ErrorIs(t, err, ErrInsufficientPool)
}

func TestCreateMatchOneWaitingPerCreator(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryLinux, 30)

	_, err := svc.CreateMatch("creator-1", models.CategoryLinux, 10, "", "")
	require.NoError(t, err)

	_, err = svc.CreateMatch("creator-1", models.CategoryLinux, 10, "", "")
	require.ErrorIs(t, err, ErrAlreadyWaiting)
}

func TestJoinMatch(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryLinux, 10)

	created, err := svc.CreateMatch("creator-1", models.CategoryLinux, 10, "", "")
	require.NoError(t, err)

	// self-join rejected
	_, err = svc.JoinMatch(created.MatchCode, "creator-1")
	require.ErrorIs(t, err, ErrForbidden)

	// first joiner takes the slot and activates the match
	joined, err := svc.JoinMatch(created.MatchCode, "opponent-1")
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusActive, joined.Status)
	require.NotNil(t, joined.OpponentID)
	require.Equal(t, "opponent-1", *joined.OpponentID)
	require.NotNil(t, joined.StartedAt)
	require.Len(t, joined.Questions, 10)

	// the loser of the join race sees Conflict, never an overwrite
	_, err = svc.JoinMatch(created.MatchCode, "opponent-2")
	require.ErrorIs(t, err, ErrMatchFull)

	var stored models.Match
	require.NoError(t, db.Where("match_code = ?", created.MatchCode).First(&stored).Error)
	require.Equal(t, "opponent-1", *stored.OpponentID)
}

func TestJoinMatchNotFound(t *testing.T) {
	svc, _ := newTestArena(t)
	_, err := svc.JoinMatch("ZZZZZZ", "opponent-1")
	require.ErrorIs(t, err, ErrMatchNotFound)
}

func TestCancelMatch(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryLinux, 10)

	created, err := svc.CreateMatch("creator-1", models.CategoryLinux, 10, "", "")
	require.NoError(t, err)

	// only the creator may cancel
	require.ErrorIs(t, svc.CancelMatch(created.MatchCode, "someone-else"), ErrForbidden)

	require.NoError(t, svc.CancelMatch(created.MatchCode, "creator-1"))

	_, err = svc.GetByCode(created.MatchCode, "creator-1")
	require.ErrorIs(t, err, ErrMatchNotFound)
}

func TestCancelActiveMatchRejected(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryLinux, 10)

	created, err := svc.CreateMatch("creator-1", models.CategoryLinux, 10, "", "")
	require.NoError(t, err)
	_, err = svc.JoinMatch(created.MatchCode, "opponent-1")
	require.NoError(t, err)

	require.ErrorIs(t, svc.CancelMatch(created.MatchCode, "creator-1"), ErrInvalidState)
}

func TestSubmitAnswer(t *testing.T) {
	svc, db := newTestArena(t)

	q1 := makeQuestion(uuid.NewString(), []int{0}, 1)
	q2 := makeQuestion(uuid.NewString(), []int{1, 2}, 1)
	m := seedMatch(t, db, models.MatchModeNormal, []models.Question{q1, q2})

	// outsiders rejected
	err := svc.SubmitAnswer(m.MatchCode, "stranger", q1.ID, []int{0})
	require.ErrorIs(t, err, ErrForbidden)

	// off-sheet question rejected
	err = svc.SubmitAnswer(m.MatchCode, "creator-1", uuid.NewString(), []int{0})
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.SubmitAnswer(m.MatchCode, "creator-1", q1.ID, []int{3}))
	// resubmission overwrites — last write wins per question
	require.NoError(t, svc.SubmitAnswer(m.MatchCode, "creator-1", q1.ID, []int{0}))
	require.NoError(t, svc.SubmitAnswer(m.MatchCode, "opponent-1", q2.ID, []int{1, 2}))

	var stored models.Match
	require.NoError(t, db.Where("id = ?", m.ID).First(&stored).Error)
	require.Equal(t, models.AnswerMap{q1.ID: {0}}, stored.CreatorAnswers())
	require.Equal(t, models.AnswerMap{q2.ID: {1, 2}}, stored.OpponentAnswers())
}

func TestSubmitAnswerRequiresActiveMatch(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryLinux, 10)

	created, err := svc.CreateMatch("creator-1", models.CategoryLinux, 10, "", "")
	require.NoError(t, err)

	err = svc.SubmitAnswer(created.MatchCode, "creator-1", created.QuestionIDs[0], []int{0})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestFinishScoring(t *testing.T) {
	svc, db := newTestArena(t)

	// correct sets {0} and {1,2}; creator answers both right,
	// opponent misses the first
	q1 := makeQuestion(uuid.NewString(), []int{0}, 1)
	q2 := makeQuestion(uuid.NewString(), []int{1, 2}, 1)
	m := seedMatch(t, db, models.MatchModeNormal, []models.Question{q1, q2})

	require.NoError(t, svc.SubmitAnswer(m.MatchCode, "creator-1", q1.ID, []int{0}))
	require.NoError(t, svc.SubmitAnswer(m.MatchCode, "creator-1", q2.ID, []int{1, 2}))
	require.NoError(t, svc.SubmitAnswer(m.MatchCode, "opponent-1", q1.ID, []int{1}))
	require.NoError(t, svc.SubmitAnswer(m.MatchCode, "opponent-1", q2.ID, []int{1, 2}))

	result, err := svc.FinishMatch(m.MatchCode, "creator-1")
	require.NoError(t, err)
	require.Equal(t, 2, result.CreatorScore)
	require.Equal(t, 1, result.OpponentScore)
	require.NotNil(t, result.WinnerID)
	require.Equal(t, "creator-1", *result.WinnerID)
	require.Equal(t, models.MatchStatusFinished, result.Match.Status)
	require.NotNil(t, result.Match.FinishedAt)

	// normal mode: each side keeps its own score as XP
	require.Equal(t, int64(2), userXP(t, db, "creator-1"))
	require.Equal(t, int64(1), userXP(t, db, "opponent-1"))
}

func TestFinishIdempotent(t *testing.T) {
	svc, db := newTestArena(t)

	q1 := makeQuestion(uuid.NewString(), []int{0}, 1)
	m := seedMatch(t, db, models.MatchModeNormal, []models.Question{q1})
	require.NoError(t, svc.SubmitAnswer(m.MatchCode, "creator-1", q1.ID, []int{0}))

	first, err := svc.FinishMatch(m.MatchCode, "creator-1")
	require.NoError(t, err)
	xpAfterFirst := userXP(t, db, "creator-1")

	// second finish — from the other participant — returns the stored result
	second, err := svc.FinishMatch(m.MatchCode, "opponent-1")
	require.NoError(t, err)
	require.Equal(t, first.CreatorScore, second.CreatorScore)
	require.Equal(t, first.OpponentScore, second.OpponentScore)
	require.Equal(t, first.WinnerID, second.WinnerID)

	// and performs no further XP mutation
	require.Equal(t, xpAfterFirst, userXP(t, db, "creator-1"))
}

func TestFinishBloodyWinnerTakesAll(t *testing.T) {
	svc, db := newTestArena(t)

	questions := make([]models.Question, 7)
	for i := range questions {
		questions[i] = makeQuestion(uuid.NewString(), []int{0}, 1)
	}
	m := seedMatch(t, db, models.MatchModeBloody, questions)

	// creator 5 correct, opponent 2 correct
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.SubmitAnswer(m.MatchCode, "creator-1", questions[i].ID, []int{0}))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, svc.SubmitAnswer(m.MatchCode, "opponent-1", questions[i].ID, []int{0}))
	}

	result, err := svc.FinishMatch(m.MatchCode, "opponent-1")
	require.NoError(t, err)
	require.Equal(t, 5, result.CreatorScore)
	require.Equal(t, 2, result.OpponentScore)

	require.Equal(t, int64(7), userXP(t, db, "creator-1"), "winner takes the whole pot")
	require.Equal(t, int64(0), userXP(t, db, "opponent-1"), "loser takes nothing")
}

func TestFinishBloodyDrawFallsBackToNormal(t *testing.T) {
	svc, db := newTestArena(t)

	questions := make([]models.Question, 6)
	for i := range questions {
		questions[i] = makeQuestion(uuid.NewString(), []int{0}, 1)
	}
	m := seedMatch(t, db, models.MatchModeBloody, questions)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.SubmitAnswer(m.MatchCode, "creator-1", questions[i].ID, []int{0}))
		require.NoError(t, svc.SubmitAnswer(m.MatchCode, "opponent-1", questions[3+i].ID, []int{0}))
	}

	result, err := svc.FinishMatch(m.MatchCode, "creator-1")
	require.NoError(t, err)
	require.Equal(t, 3, result.CreatorScore)
	require.Equal(t, 3, result.OpponentScore)
	require.Nil(t, result.WinnerID, "draw has no winner")

	require.Equal(t, int64(3), userXP(t, db, "creator-1"))
	require.Equal(t, int64(3), userXP(t, db, "opponent-1"))
}

func TestFinishByNonParticipantRejected(t *testing.T) {
	svc, db := newTestArena(t)

	q1 := makeQuestion(uuid.NewString(), []int{0}, 1)
	m := seedMatch(t, db, models.MatchModeNormal, []models.Question{q1})

	_, err := svc.FinishMatch(m.MatchCode, "stranger")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestFinishWaitingMatchRejected(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryLinux, 10)

	created, err := svc.CreateMatch("creator-1", models.CategoryLinux, 10, "", "")
	require.NoError(t, err)

	_, err = svc.FinishMatch(created.MatchCode, "creator-1")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestListAvailableAndMyWaiting(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryLinux, 30)

	_, err := svc.CreateMatch("creator-1", models.CategoryLinux, 10, "", models.MatchVisibilityPublic)
	require.NoError(t, err)
	_, err = svc.CreateMatch("creator-2", models.CategoryLinux, 10, "", models.MatchVisibilityPrivate)
	require.NoError(t, err)
	mine, err := svc.CreateMatch("creator-3", models.CategoryLinux, 10, "", models.MatchVisibilityPublic)
	require.NoError(t, err)

	// discovery: public + waiting + not mine
	available, err := svc.ListAvailable("creator-3")
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Equal(t, "creator-1", available[0].CreatorID)

	waiting, err := svc.GetMyWaiting("creator-3")
	require.NoError(t, err)
	require.NotNil(t, waiting)
	require.Equal(t, mine.MatchCode, waiting.MatchCode)

	none, err := svc.GetMyWaiting("creator-9")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestGetByCodeParticipantOnly(t *testing.T) {
	svc, db := newTestArena(t)

	q1 := makeQuestion(uuid.NewString(), []int{0}, 1)
	m := seedMatch(t, db, models.MatchModeNormal, []models.Question{q1})

	detail, err := svc.GetByCode(m.MatchCode, "creator-1")
	require.NoError(t, err)
	require.Equal(t, m.MatchCode, detail.MatchCode)
	require.Len(t, detail.Questions, 1)
	// player view never leaks correct answers
	require.Equal(t, []string{"a", "b", "c", "d"}, detail.Questions[0].Options)

	_, err = svc.GetByCode(m.MatchCode, "stranger")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestGenerateMatchCodeParallel(t *testing.T) {
	codes := make(chan string, 64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 8; i++ {
				codes <- generateMatchCode()
			}
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		require.Len(t, code, matchCodeLength)
		for _, ch := range code {
			require.Contains(t, matchCodeAlphabet, string(ch))
		}
	}
}

func TestJoinMatchConcurrentJoiners(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryLinux, 10)

	created, err := svc.CreateMatch("creator-1", models.CategoryLinux, 10, "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.JoinMatch(created.MatchCode, fmt.Sprintf("opponent-%d", i))
		}(i)
	}
	wg.Wait()

	// exactly one winner, the other sees the conflict
	var wins, fulls int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrMatchFull):
			fulls++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, fulls)

	var stored models.Match
	require.NoError(t, db.Where("match_code = ?", created.MatchCode).First(&stored).Error)
	require.Equal(t, models.MatchStatusActive, stored.Status)
	require.NotNil(t, stored.OpponentID)
}

// TestJoinMatchSlotTakenMidFlight forces the narrow window where the slot is
// free at the precheck but taken before the conditional update lands: the
// loser's UPDATE matches zero rows and the re-read classifies it as full.
func TestJoinMatchSlotTakenMidFlight(t *testing.T) {
	svc, db := newTestArena(t)
	seedQuestions(t, db, models.CategoryLinux, 10)

	created, err := svc.CreateMatch("creator-1", models.CategoryLinux, 10, "", "")
	require.NoError(t, err)

	stolen := false
	err = db.Callback().Update().Before("gorm:update").Register("take_slot_first", func(tx *gorm.DB) {
		if stolen {
			return
		}
		stolen = true
		db.Exec("UPDATE matches SET opponent_id = ?, status = ?, started_at = ? WHERE match_code = ?",
			"opponent-1", models.MatchStatusActive, time.Now(), created.MatchCode)
	})
	require.NoError(t, err)
	defer db.Callback().Update().Remove("take_slot_first")

	_, err = svc.JoinMatch(created.MatchCode, "opponent-2")
	require.ErrorIs(t, err, ErrMatchFull)

	var stored models.Match
	require.NoError(t, db.Where("match_code = ?", created.MatchCode).First(&stored).Error)
	require.Equal(t, "opponent-1", *stored.OpponentID)
}

// TestFinishMatchLosesFinishRace forces the other finish call to win between
// the status precheck and the conditional transition: the loser must return
// the stored result and award no XP.
func TestFinishMatchLosesFinishRace(t *testing.T) {
	svc, db := newTestArena(t)

	q1 := makeQuestion(uuid.NewString(), []int{0}, 1)
	m := seedMatch(t, db, models.MatchModeNormal, []models.Question{q1})
	require.NoError(t, svc.SubmitAnswer(m.MatchCode, "creator-1", q1.ID, []int{0}))

	flipped := false
	err := db.Callback().Update().Before("gorm:update").Register("finish_first", func(tx *gorm.DB) {
		if flipped {
			return
		}
		flipped = true
		db.Exec("UPDATE matches SET status = ?, creator_score = ?, opponent_score = ?, winner_id = ?, finished_at = ? WHERE id = ?",
			models.MatchStatusFinished, 1, 0, "creator-1", time.Now(), m.ID)
	})
	require.NoError(t, err)
	defer db.Callback().Update().Remove("finish_first")

	result, err := svc.FinishMatch(m.MatchCode, "opponent-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.CreatorScore)
	require.Equal(t, 0, result.OpponentScore)
	require.NotNil(t, result.WinnerID)
	require.Equal(t, "creator-1", *result.WinnerID)

	// the loser of the transition race never applies rewards
	require.Equal(t, int64(0), userXP(t, db, "creator-1"))
	require.Equal(t, int64(0), userXP(t, db, "opponent-1"))
}
