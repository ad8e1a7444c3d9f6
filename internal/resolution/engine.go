package resolution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/resolvd/internal/retriever"
)

var tracer = otel.Tracer("resolvd.resolution")

// defaultMaxContextLength caps prompt length in characters.
const defaultMaxContextLength = 4000

// Resolution is the parsed output of a generative resolution attempt.
type Resolution struct {
	RootCause string

	// RecommendedFix holds whatever shape the model produced, a string
	// or a list of steps; fix normalization happens downstream.
	RecommendedFix any

	// Confidence is hard-clamped to [0,1].
	Confidence float64
}

// Engine generates resolutions from an error and its similar matches.
type Engine struct {
	client           CompletionClient
	maxContextLength int
	logger           *zap.Logger
}

// NewEngine creates a resolution engine. maxContextLength bounds the
// assembled prompt; values <= 0 use the default.
func NewEngine(client CompletionClient, maxContextLength int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxContextLength <= 0 {
		maxContextLength = defaultMaxContextLength
	}
	return &Engine{
		client:           client,
		maxContextLength: maxContextLength,
		logger:           logger,
	}
}

// Generate builds the prompt, calls the completion client, and parses
// the output into a Resolution. The result always carries a root cause,
// a fix, and a confidence in [0,1]; only completion failure or an empty
// response is an error.
func (e *Engine) Generate(ctx context.Context, errorMessage string, matches []retriever.SimilarMatch, extraContext string) (Resolution, error) {
	ctx, span := tracer.Start(ctx, "Engine.Generate")
	defer span.End()

	span.SetAttributes(attribute.Int("similar_matches", len(matches)))

	prompt := e.BuildPrompt(errorMessage, matches, extraContext)

	content, err := e.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		if errors.Is(err, ErrGeneration) || errors.Is(err, ErrEmptyResponse) {
			return Resolution{}, err
		}
		return Resolution{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		span.SetStatus(codes.Error, "empty completion")
		return Resolution{}, fmt.Errorf("%w: completion returned no content", ErrEmptyResponse)
	}

	res := finalizeResolution(parseResolution(content))

	e.logger.Debug("resolution generated",
		zap.Float64("confidence", res.Confidence),
		zap.Int("prompt_length", len(prompt)),
	)

	span.SetAttributes(attribute.Float64("confidence", res.Confidence))
	span.SetStatus(codes.Ok, "success")
	return res, nil
}
