// handlers/arena.go
package handlers

import (
	"errors"
	"log"

	"net2077-arena-system/middleware"
	"net2077-arena-system/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// statusForError maps the service error taxonomy onto HTTP statuses.
// Anything unclassified is a storage error: logged, surfaced as 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrMatchNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrMatchFull), errors.Is(err, services.ErrAlreadyWaiting):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrInsufficientPool),
		errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func errJSON(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ [ARENA] unexpected error on %s: %v", c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func SetupArenaRoutes(app *fiber.App, arenaService *services.ArenaService, profileClient *services.ProfileServiceClient) {
	// SSE stream authenticates via query token — EventSource cannot set headers
	app.Get("/arena/:matchCode/stream", middleware.SSEAuthMiddleware(profileClient), arenaService.StreamMatchSSE)

	// 🔐 Everything else requires the gateway's user context
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/users/search", arenaService.SearchUsers)

	secured.Post("/arena/create", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Category      string `json:"category" validate:"required,oneof=linux network"`
			QuestionCount int    `json:"question_count" validate:"required,oneof=10 20 30"`
			Mode          string `json:"mode" validate:"omitempty,oneof=normal bloody"`
			Visibility    string `json:"visibility" validate:"omitempty,oneof=public private"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "cause": err.Error()})
		}

		match, err := arenaService.CreateMatch(userID, req.Category, req.QuestionCount, req.Mode, req.Visibility)
		if err != nil {
			return errJSON(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"match_id": match.MatchCode,
			"match":    match,
		})
	})

	secured.Post("/arena/join", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			MatchCode string `json:"match_code" validate:"required,len=6"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "cause": err.Error()})
		}

		match, err := arenaService.JoinMatch(req.MatchCode, userID)
		if err != nil {
			return errJSON(c, err)
		}
		return c.JSON(match)
	})

	secured.Get("/arena/available", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		matches, err := arenaService.ListAvailable(userID)
		if err != nil {
			return errJSON(c, err)
		}
		return c.JSON(matches)
	})

	secured.Get("/arena/my-waiting", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		match, err := arenaService.GetMyWaiting(userID)
		if err != nil {
			return errJSON(c, err)
		}
		if match == nil {
			return c.JSON(nil)
		}
		return c.JSON(match)
	})

	secured.Get("/arena/:matchCode", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		match, err := arenaService.GetByCode(c.Params("matchCode"), userID)
		if err != nil {
			return errJSON(c, err)
		}
		return c.JSON(match)
	})

	secured.Post("/arena/answer", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			MatchCode  string `json:"match_code" validate:"required,len=6"`
			QuestionID string `json:"question_id" validate:"required"`
			Answers    []int  `json:"answers"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "cause": err.Error()})
		}
		// An empty selection clears the answer, so [] is valid; only a
		// missing field is rejected.
		if req.Answers == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "cause": "answers field is required"})
		}

		if err := arenaService.SubmitAnswer(req.MatchCode, userID, req.QuestionID, req.Answers); err != nil {
			return errJSON(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	secured.Post("/arena/finish", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			MatchCode string `json:"match_code" validate:"required,len=6"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "cause": err.Error()})
		}

		result, err := arenaService.FinishMatch(req.MatchCode, userID)
		if err != nil {
			return errJSON(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"match":   result.Match,
			"results": fiber.Map{
				"creator_score":  result.CreatorScore,
				"opponent_score": result.OpponentScore,
				"winner":         result.WinnerID,
			},
		})
	})

	secured.Post("/arena/cancel", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			MatchCode string `json:"match_code" validate:"required,len=6"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "cause": err.Error()})
		}

		if err := arenaService.CancelMatch(req.MatchCode, userID); err != nil {
			return errJSON(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	})
}
