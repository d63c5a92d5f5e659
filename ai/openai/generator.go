package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/answerit/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client llms.Model
	logger *slog.Logger
}

const generatorSystemPrompt = `You answer questions exclusively from the facts provided in the <facts> XML tag.
If the facts do not contain the answer, say so plainly. Do not invent information.`

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client: client,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new answer generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// GenerateAnswer invokes the language model with the question and evidence.
// One call per invocation; rate limiting and retries belong to the caller.
func (g *Generator) GenerateAnswer(ctx context.Context, question string, evidence []string) (string, error) {
	g.logger.Debug("invoking language model", "evidence", len(evidence))

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(generatorSystemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(buildAnswerPrompt(question, evidence)),
			},
		},
	}

	response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		g.logger.Error("failed to generate answer", "err", err)
		return "", fmt.Errorf("%w: %w", ai.ErrGenerationFailed, err)
	}

	if len(response.Choices) < 1 {
		return "", ai.ErrEmptyAnswer
	}

	answer := strings.TrimSpace(response.Choices[0].Content)
	if answer == "" {
		return "", ai.ErrEmptyAnswer
	}
	return answer, nil
}

// buildAnswerPrompt formats the question and evidence passages with XML tags
// so the model can tell them apart reliably.
func buildAnswerPrompt(question string, evidence []string) string {
	var sb strings.Builder
	sb.WriteString("<question>")
	sb.WriteString(question)
	sb.WriteString("</question>\n\n<facts>\n")
	for _, passage := range evidence {
		sb.WriteString("<fact>")
		sb.WriteString(passage)
		sb.WriteString("</fact>\n")
	}
	sb.WriteString("</facts>")
	return sb.String()
}
