// handlers/questions.go
package handlers

import (
	"net2077-arena-system/middleware"
	"net2077-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupQuestionRoutes(app *fiber.App, questionService *services.QuestionService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Pool sizes per category, so the client can grey out question counts
	// the bank cannot satisfy before the user hits create.
	secured.Get("/questions/categories", func(c *fiber.Ctx) error {
		counts, err := questionService.CategoryCounts()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to count questions",
				"cause": err.Error(),
			})
		}
		return c.JSON(counts)
	})

	// 🔒 Admin-only bank management
	admin := secured.Group("/admin", middleware.RequireAdmin())

	admin.Post("/questions", func(c *fiber.Ctx) error {
		var req struct {
			Category       string   `json:"category" validate:"required,oneof=linux network"`
			Text           string   `json:"text" validate:"required"`
			Options        []string `json:"options" validate:"required,min=2"`
			CorrectAnswers []int    `json:"correct_answers" validate:"required,min=1"`
			Points         int      `json:"points"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "cause": err.Error()})
		}

		q, err := questionService.Create(req.Category, req.Text, req.Options, req.CorrectAnswers, req.Points)
		if err != nil {
			return errJSON(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(q)
	})

	admin.Post("/questions/import", func(c *fiber.Ctx) error {
		var req struct {
			Key string `json:"key" validate:"required"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "cause": err.Error()})
		}

		packSlug, imported, err := questionService.ImportPack(req.Key)
		if err != nil {
			return errJSON(c, err)
		}
		return c.JSON(fiber.Map{
			"message":  "pack imported successfully",
			"pack":     packSlug,
			"imported": imported,
		})
	})

	admin.Post("/questions/export", func(c *fiber.Ctx) error {
		var req struct {
			Name     string `json:"name" validate:"required"`
			Category string `json:"category" validate:"omitempty,oneof=linux network"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "cause": err.Error()})
		}

		key, exported, err := questionService.ExportPack(req.Name, req.Category)
		if err != nil {
			return errJSON(c, err)
		}
		return c.JSON(fiber.Map{
			"message":  "pack exported successfully",
			"key":      key,
			"exported": exported,
		})
	})
}
