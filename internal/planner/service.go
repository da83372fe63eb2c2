package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/planner/internal/logging"
	"github.com/aristath/planner/internal/plan"
)

// Generator is the text-generation collaborator: one prompt in, free text out.
// Retry and timeout policy belong to the implementation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Service turns a requirement into a plan by asking a Generator for a
// structured payload and passing the answer through the Builder.
type Service struct {
	gen     Generator
	builder *Builder
	logger  *logging.Logger
}

// NewService creates a planning service.
func NewService(gen Generator, builder *Builder, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	if builder == nil {
		builder = NewBuilder(logger)
	}
	return &Service{gen: gen, builder: builder, logger: logger.With("component", "planner")}
}

// Generate produces a plan for requirement. It always returns a usable plan:
// a generator failure is handled like an unusable payload.
func (s *Service) Generate(ctx context.Context, requirement, codebaseSummary string) (*plan.Plan, BuildReport) {
	prompt := BuildPlanningPrompt(requirement, codebaseSummary)

	s.logger.Info("requesting plan", "requirement_bytes", len(requirement), "context_bytes", len(codebaseSummary))
	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("plan generation failed", "error", err)
		return s.builder.Fallback(requirement, "", fmt.Errorf("generating plan: %w", err))
	}

	return s.builder.Build(text, requirement)
}

// BuildPlanningPrompt assembles the prompt asking for a JSON plan.
func BuildPlanningPrompt(requirement, codebaseSummary string) string {
	var b strings.Builder
	b.WriteString("Break the following requirement into an implementation plan.\n\n")
	b.WriteString("Requirement:\n")
	b.WriteString(strings.TrimSpace(requirement))
	b.WriteString("\n\n")

	if summary := strings.TrimSpace(codebaseSummary); summary != "" {
		b.WriteString("Existing codebase:\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}

	b.WriteString(`Respond with a single JSON object and nothing else:
{
  "title": "short plan title",
  "description": "one paragraph summary",
  "tasks": [
    {
      "id": "task-1",
      "title": "task title",
      "description": "what to implement",
      "files": ["path/to/file"],
      "dependencies": ["ids of tasks that must finish first"],
      "estimatedTime": "30 minutes",
      "priority": "low | medium | high"
    }
  ]
}
`)
	return b.String()
}
