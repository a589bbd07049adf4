package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"job-matcher/internal/services"
)

type RunHandler struct {
	engine *services.MatchEngine
	logger *zap.Logger
}

func NewRunHandler(engine *services.MatchEngine, logger *zap.Logger) *RunHandler {
	return &RunHandler{
		engine: engine,
		logger: logger,
	}
}

// HandleStartRun handles POST /api/v1/runs. The run executes in the
// background; progress is polled via GET /api/v1/runs.
func (h *RunHandler) HandleStartRun(c *fiber.Ctx) error {
	if h.engine.Status().Running {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A run is already in progress",
		})
	}

	go func() {
		summary, err := h.engine.Run(context.Background())
		if err != nil {
			h.logger.Error("matching run failed", zap.Error(err))
			return
		}
		h.logger.Info("matching run completed",
			zap.Int64("matched", summary.Matched),
			zap.Int64("errors", summary.Errors),
		)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "started",
	})
}

// HandleGetRun handles GET /api/v1/runs.
func (h *RunHandler) HandleGetRun(c *fiber.Ctx) error {
	return c.JSON(h.engine.Status())
}

// HandleStopRun handles DELETE /api/v1/runs. Workers finish their current
// job before the run winds down.
func (h *RunHandler) HandleStopRun(c *fiber.Ctx) error {
	h.engine.Stop()
	return c.JSON(fiber.Map{
		"status": "stopping",
	})
}
