package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"job-matcher/internal/repositories"
)

type ResultHandler struct {
	jobRepo     repositories.JobRepository
	outcomeRepo repositories.OutcomeRepository
}

func NewResultHandler(jobRepo repositories.JobRepository, outcomeRepo repositories.OutcomeRepository) *ResultHandler {
	return &ResultHandler{
		jobRepo:     jobRepo,
		outcomeRepo: outcomeRepo,
	}
}

// HandleGetResult handles GET /api/v1/results/:job_id and returns the latest
// recorded outcome for the job, matched or not.
func (h *ResultHandler) HandleGetResult(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("job_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job ID format",
		})
	}

	job, err := h.jobRepo.FindByID(jobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	match, err := h.outcomeRepo.FindLatestMatch(jobID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to look up match records",
		})
	}
	if match != nil {
		return c.JSON(fiber.Map{
			"job_id":    jobID.String(),
			"job_title": job.Title,
			"company":   job.Company,
			"status":    string(match.Status),
			"match":     match,
		})
	}

	unmatched, err := h.outcomeRepo.FindLatestUnmatched(jobID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to look up unmatched records",
		})
	}
	if unmatched != nil {
		return c.JSON(fiber.Map{
			"job_id":    jobID.String(),
			"job_title": job.Title,
			"company":   job.Company,
			"status":    string(unmatched.Status),
			"unmatched": unmatched,
		})
	}

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "No outcome recorded for this job",
	})
}
