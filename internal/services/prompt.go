package services

import (
	"fmt"
	"strings"

	"job-matcher/internal/models"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// CandidateKey tags each candidate in the batched request so the response can
// be joined back deterministically.
func CandidateKey(index int) string {
	return fmt.Sprintf("candidate_%d", index+1)
}

// BuildValidationPrompt creates one batched scoring request covering every
// candidate for a job.
func (pb *PromptBuilder) BuildValidationPrompt(job *models.JobPosting, candidates models.CandidateSet) string {
	var sb strings.Builder

	sb.WriteString(`You are an expert technical recruiter. Evaluate how well each candidate resume below matches the job posting.

JOB POSTING:
`)
	sb.WriteString(fmt.Sprintf("Title: %s\nCompany: %s\nDescription:\n%s\n\nCANDIDATES:\n", job.Title, job.Company, job.Description))

	for i, candidate := range candidates {
		sb.WriteString(fmt.Sprintf("\n--- %s (vector similarity: %.2f) ---\n", CandidateKey(i), candidate.Similarity))
		sb.WriteString(fmt.Sprintf("Name: %s\n", candidate.Resume.CandidateName))
		sb.WriteString(fmt.Sprintf("Industry: %s\n", candidate.Resume.IndustryCode))
		if len(candidate.Resume.Fields) > 0 {
			sb.WriteString("Resume:\n")
			sb.Write(candidate.Resume.Fields)
			sb.WriteString("\n")
		}
	}

	keys := make([]string, len(candidates))
	for i := range candidates {
		keys[i] = fmt.Sprintf("%q", CandidateKey(i))
	}

	sb.WriteString(fmt.Sprintf(`
Score each candidate from 0 to 100 for fit against this specific job posting. Weigh hard requirements (must-have skills, seniority, domain) heaviest; penalize missing core skills severely.

Return ONLY a JSON object in exactly this shape, with one entry per candidate key (%s):
{
  "candidate_1": {"score": <0-100 integer>, "reasoning": "<2-3 sentences>"},
  "best_candidate_key": "<key of the strongest candidate>"
}
Do not add any text outside the JSON.`, strings.Join(keys, ", ")))

	return sb.String()
}
