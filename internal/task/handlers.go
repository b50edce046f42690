package task

import (
	"context"
	"fmt"
	"time"

	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/generation"
)

// stepFunc executes one named pipeline step.
type stepFunc func(ctx context.Context, exec *Execution, step *domain.Step) (map[string]any, error)

// pipelineHandler implements Handler by dispatching on step name. The
// step set mirrors the job type's template; both are fixed at startup.
type pipelineHandler struct {
	jobType domain.JobType
	steps   map[string]stepFunc
}

func (h *pipelineHandler) JobType() domain.JobType { return h.jobType }

func (h *pipelineHandler) RunStep(
	ctx context.Context,
	exec *Execution,
	step *domain.Step,
) (map[string]any, error) {
	fn, ok := h.steps[step.StepName]
	if !ok {
		return nil, fmt.Errorf("unknown step %q for job type %q", step.StepName, h.jobType)
	}
	return fn(ctx, exec, step)
}

// generateStep builds a stepFunc that delegates to the content
// generator. The step's output is namespaced under the task name so
// later steps can read it without key collisions.
func generateStep(gen generation.Generator, taskName string) stepFunc {
	return func(ctx context.Context, exec *Execution, _ *domain.Step) (map[string]any, error) {
		content, err := gen.Generate(ctx, generation.Request{
			Task:   taskName,
			UserID: exec.Job.UserID,
			JobID:  exec.Job.ID,
			Input:  requestInput(exec),
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{taskName: content}, nil
	}
}

// requestInput merges the job's input with the output accumulated so
// far, so each step sees what its predecessors produced.
func requestInput(exec *Execution) map[string]any {
	input := make(map[string]any, len(exec.Job.InputData)+len(exec.Output))
	for k, v := range exec.Job.InputData {
		input[k] = v
	}
	for k, v := range exec.Output {
		input[k] = v
	}
	return input
}

// hasJobReference reports whether the job's input names a target job
// posting, either inline or by reference.
func hasJobReference(input map[string]any) bool {
	for _, key := range []string{"job_description", "job_posting", "job_url"} {
		if v, ok := input[key]; ok && v != nil && v != "" {
			return true
		}
	}
	return false
}

// NewCVGenerationHandler builds the cv_generation pipeline. The
// job_analysis step is skipped when the input names no target posting,
// producing a general-purpose CV instead of a tailored one.
func NewCVGenerationHandler(gen generation.Generator) Handler {
	return &pipelineHandler{
		jobType: domain.JobTypeCVGeneration,
		steps: map[string]stepFunc{
			"profile_analysis": generateStep(gen, "profile_analysis"),
			"job_analysis": func(ctx context.Context, exec *Execution, step *domain.Step) (map[string]any, error) {
				if !hasJobReference(exec.Job.InputData) {
					return nil, ErrSkipStep
				}
				return generateStep(gen, "job_analysis")(ctx, exec, step)
			},
			"content_generation":   generateStep(gen, "cv_draft"),
			"template_application": applyTemplateStep("cv"),
			"pdf_generation":       renderDocumentStep("cv"),
			"quality_check":        generateStep(gen, "content_review"),
			"delivery":             deliveryStep(),
		},
	}
}

// NewCoverLetterGenerationHandler builds the cover_letter_generation
// pipeline.
func NewCoverLetterGenerationHandler(gen generation.Generator) Handler {
	return &pipelineHandler{
		jobType: domain.JobTypeCoverLetterGeneration,
		steps: map[string]stepFunc{
			"company_research":     generateStep(gen, "company_research"),
			"profile_analysis":     generateStep(gen, "profile_analysis"),
			"content_generation":   generateStep(gen, "cover_letter_draft"),
			"template_application": applyTemplateStep("cover_letter"),
			"pdf_generation":       renderDocumentStep("cover_letter"),
			"quality_review":       generateStep(gen, "content_review"),
			"delivery":             deliveryStep(),
		},
	}
}

// NewJobAnalysisHandler builds the job_analysis pipeline. Extraction and
// scoring are derived locally from the LLM-backed steps around them.
func NewJobAnalysisHandler(gen generation.Generator) Handler {
	return &pipelineHandler{
		jobType: domain.JobTypeJobAnalysis,
		steps: map[string]stepFunc{
			"job_parsing":               generateStep(gen, "job_parsing"),
			"requirement_extraction":    extractRequirementsStep(),
			"skill_matching":            generateStep(gen, "job_analysis"),
			"compatibility_scoring":     compatibilityScoringStep(),
			"recommendation_generation": generateStep(gen, "recommendation_generation"),
		},
	}
}

// applyTemplateStep selects and records the document template. Template
// choice comes from the input, defaulting to "modern".
func applyTemplateStep(documentKind string) stepFunc {
	return func(_ context.Context, exec *Execution, _ *domain.Step) (map[string]any, error) {
		templateName := "modern"
		if v, ok := exec.Job.InputData["template_name"].(string); ok && v != "" {
			templateName = v
		}
		return map[string]any{
			"template": map[string]any{
				"name":     templateName,
				"document": documentKind,
			},
		}, nil
	}
}

// renderDocumentStep records the rendered artifact's metadata.
func renderDocumentStep(documentKind string) stepFunc {
	return func(_ context.Context, exec *Execution, _ *domain.Step) (map[string]any, error) {
		return map[string]any{
			"document": map[string]any{
				"format":   "pdf",
				"filename": fmt.Sprintf("%s_%s.pdf", documentKind, exec.Job.ID),
			},
		}, nil
	}
}

// deliveryStep finalizes the run for pickup by the client.
func deliveryStep() stepFunc {
	return func(_ context.Context, _ *Execution, _ *domain.Step) (map[string]any, error) {
		return map[string]any{
			"delivery": map[string]any{
				"channel":      "download",
				"delivered_at": time.Now().UTC().Format(time.RFC3339),
			},
		}, nil
	}
}

// extractRequirementsStep lifts the skill lists out of the parsed
// posting so downstream consumers get them at a stable key.
func extractRequirementsStep() stepFunc {
	return func(_ context.Context, exec *Execution, _ *domain.Step) (map[string]any, error) {
		parsed, _ := exec.Output["job_parsing"].(map[string]any)
		if parsed == nil {
			return nil, fmt.Errorf("%w: job_parsing produced no output", generation.ErrInvalidResponse)
		}
		return map[string]any{
			"requirements": map[string]any{
				"required_skills":  parsed["required_skills"],
				"preferred_skills": parsed["preferred_skills"],
				"seniority":        parsed["seniority"],
			},
		}, nil
	}
}

// compatibilityScoringStep bands the raw match score.
func compatibilityScoringStep() stepFunc {
	return func(_ context.Context, exec *Execution, _ *domain.Step) (map[string]any, error) {
		matched, _ := exec.Output["job_analysis"].(map[string]any)
		if matched == nil {
			return nil, fmt.Errorf("%w: skill_matching produced no output", generation.ErrInvalidResponse)
		}

		score, _ := matched["match_score"].(float64)
		band := "weak"
		switch {
		case score >= 75:
			band = "strong"
		case score >= 50:
			band = "moderate"
		}

		return map[string]any{
			"compatibility": map[string]any{
				"score": score,
				"band":  band,
			},
		}, nil
	}
}
