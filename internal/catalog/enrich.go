package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ContentGenerator fills in descriptions and execution tips for sparse
// catalog records using the OpenAI API. Enrichment is best-effort: a failed
// generation leaves the record as it was.
type ContentGenerator struct {
	client  openai.Client
	logger  *slog.Logger
	muscles []string
}

// NewContentGenerator creates a content generator. muscles is the list of
// known muscle names used to validate generated content.
func NewContentGenerator(openaiAPIKey string, muscles []string, logger *slog.Logger) *ContentGenerator {
	client := openai.NewClient(option.WithAPIKey(openaiAPIKey))
	return &ContentGenerator{
		client:  client,
		logger:  logger,
		muscles: muscles,
	}
}

// generatedContent is the JSON shape the model is instructed to return.
type generatedContent struct {
	Description   string   `json:"description"`
	ExecutionTips []string `json:"execution_tips"`
	PrimaryMuscle string   `json:"primary_muscle"`
}

// Enrich generates a description and execution tips for the given exercise.
func (g *ContentGenerator) Enrich(ctx context.Context, exercise Exercise) (Exercise, error) {
	if exercise.Name == "" {
		return exercise, errors.New("exercise name cannot be empty")
	}

	prompt := fmt.Sprintf(`Write content for the exercise "%s" (difficulty %d/10, equipment: %s).

Respond with a single JSON object and nothing else:
{
  "description": "markdown description with an ## Instructions section of 3-5 numbered steps and a ## Common Mistakes section of 3-4 bullet points, 150-200 words total",
  "execution_tips": ["3-5 short form cues"],
  "primary_muscle": "the main muscle worked, one of: %s"
}

Use simple, direct language that beginners can understand and highlight
safety considerations where relevant.`,
		exercise.Name, exercise.Difficulty, exercise.Equipment, strings.Join(g.muscles, ", "))

	chat, err := g.client.Chat.Completions.New(ctx,
		openai.ChatCompletionNewParams{ //nolint:exhaustruct // only need to set a few fields.
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: openai.ChatModelGPT4o,
		})
	if err != nil {
		return exercise, fmt.Errorf("chat completion: %w", err)
	}
	if len(chat.Choices) == 0 {
		return exercise, errors.New("chat completion returned no choices")
	}

	var content generatedContent
	if err = json.Unmarshal([]byte(trimJSONFence(chat.Choices[0].Message.Content)), &content); err != nil {
		return exercise, fmt.Errorf("parse content response: %w", err)
	}
	if content.Description == "" {
		return exercise, errors.New("generated content is missing a description")
	}
	if content.PrimaryMuscle != "" && !slices.Contains(g.muscles, content.PrimaryMuscle) {
		return exercise, fmt.Errorf("invalid muscle %q", content.PrimaryMuscle)
	}

	exercise.Description = content.Description
	if len(content.ExecutionTips) > 0 {
		exercise.ExecutionTips = content.ExecutionTips
	}
	if exercise.PrimaryMuscle == "" && content.PrimaryMuscle != "" {
		exercise.PrimaryMuscle = content.PrimaryMuscle
	}
	return exercise, nil
}

// EnrichSparse runs Enrich on every exercise with a blank description and
// returns the updated slice. Failures are logged and the sparse record kept.
func (g *ContentGenerator) EnrichSparse(ctx context.Context, exercises []Exercise) []Exercise {
	for i, exercise := range exercises {
		if exercise.Description != "" {
			continue
		}
		enriched, err := g.Enrich(ctx, exercise)
		if err != nil {
			g.logger.LogAttrs(ctx, slog.LevelWarn, "failed to enrich exercise",
				slog.String("exercise", exercise.Name), slog.Any("error", err))
			continue
		}
		exercises[i] = enriched
	}
	return exercises
}

// trimJSONFence strips a markdown code fence the model sometimes wraps the
// JSON in.
func trimJSONFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
