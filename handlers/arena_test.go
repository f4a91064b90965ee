package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"net2077-arena-system/models"
	"net2077-arena-system/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
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

	questions := services.NewQuestionService(db)
	progression := services.NewProgressionService(db)
	arena := services.NewArenaService(db, questions, progression)

	app := fiber.New()
	SetupArenaRoutes(app, arena, nil)
	SetupProgressionRoutes(app, progression, services.NewBadgeService(db))
	return app, db
}

func seedPool(t *testing.T, db *gorm.DB, category string, n int) {
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

func doJSON(t *testing.T, app *fiber.App, method, path, userID string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var payload map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp, payload
}

func TestCreateRequiresUserContext(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/arena/create", "", fiber.Map{
		"category": "linux", "question_count": 10,
	})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateValidation(t *testing.T) {
	app, db := newTestApp(t)
	seedPool(t, db, models.CategoryLinux, 10)

	// question_count outside 10/20/30 never reaches the service
	resp, _ := doJSON(t, app, "POST", "/arena/create", "user-1", fiber.Map{
		"category": "linux", "question_count": 15,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, "POST", "/arena/create", "user-1", fiber.Map{
		"category": "chemistry", "question_count": 10,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateJoinFinishFlow(t *testing.T) {
	app, db := newTestApp(t)
	seedPool(t, db, models.CategoryLinux, 10)

	resp, payload := doJSON(t, app, "POST", "/arena/create", "creator-1", fiber.Map{
		"category": "linux", "question_count": 10,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	code, ok := payload["match_id"].(string)
	require.True(t, ok)
	require.Len(t, code, 6)

	// a second waiting room for the same creator is refused
	resp, _ = doJSON(t, app, "POST", "/arena/create", "creator-1", fiber.Map{
		"category": "linux", "question_count": 10,
	})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, joinPayload := doJSON(t, app, "POST", "/arena/join", "opponent-1", fiber.Map{
		"match_code": code,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, models.MatchStatusActive, joinPayload["status"])
	require.Len(t, joinPayload["questions"], 10)

	// third player bounces off the taken slot
	resp, _ = doJSON(t, app, "POST", "/arena/join", "opponent-2", fiber.Map{
		"match_code": code,
	})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, finishPayload := doJSON(t, app, "POST", "/arena/finish", "creator-1", fiber.Map{
		"match_code": code,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, true, finishPayload["success"])
	results, ok := finishPayload["results"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, results, "creator_score")
	require.Contains(t, results, "opponent_score")
	require.Contains(t, results, "winner")
}

func TestSubmitAnswerEmptySelectionAllowed(t *testing.T) {
	app, db := newTestApp(t)
	seedPool(t, db, models.CategoryLinux, 10)

	_, payload := doJSON(t, app, "POST", "/arena/create", "creator-1", fiber.Map{
		"category": "linux", "question_count": 10,
	})
	code := payload["match_id"].(string)

	_, joinPayload := doJSON(t, app, "POST", "/arena/join", "opponent-1", fiber.Map{
		"match_code": code,
	})
	questions, ok := joinPayload["questions"].([]interface{})
	require.True(t, ok)
	questionID := questions[0].(map[string]interface{})["id"].(string)

	// clearing a selection sends an empty array — that is a valid submission
	resp, body := doJSON(t, app, "POST", "/arena/answer", "creator-1", fiber.Map{
		"match_code":  code,
		"question_id": questionID,
		"answers":     []int{},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])

	// a missing answers field is still rejected
	resp, _ = doJSON(t, app, "POST", "/arena/answer", "creator-1", fiber.Map{
		"match_code":  code,
		"question_id": questionID,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestJoinUnknownCode(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/arena/join", "opponent-1", fiber.Map{
		"match_code": "ZZZZZZ",
	})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetMatchForbiddenForOutsider(t *testing.T) {
	app, db := newTestApp(t)
	seedPool(t, db, models.CategoryLinux, 10)

	_, payload := doJSON(t, app, "POST", "/arena/create", "creator-1", fiber.Map{
		"category": "linux", "question_count": 10,
	})
	code := payload["match_id"].(string)

	resp, _ := doJSON(t, app, "GET", "/arena/"+code, "stranger", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestUserProgressEndpoint(t *testing.T) {
	app, db := newTestApp(t)

	progression := services.NewProgressionService(db)
	_, err := progression.AwardXP("user-1", 250, "seed")
	require.NoError(t, err)

	resp, payload := doJSON(t, app, "GET", "/user/progress", "user-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, float64(250), payload["xp"])
	require.Equal(t, float64(3), payload["level"])
	require.Equal(t, true, payload["streak_active"])
}
