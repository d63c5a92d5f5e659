package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Extractor converts a raw document payload into plain text.
type Extractor interface {
	// ExtractText extracts the textual content of the payload according to
	// its declared content type.
	ExtractText(ctx context.Context, contentType string, payload []byte) (string, error)
}

// TypedExtractor dispatches on content type: PDF payloads go through the PDF
// parser, text-like types are validated as UTF-8 and passed through.
type TypedExtractor struct {
	logger *slog.Logger
}

// NewExtractor creates the default content-type dispatching extractor.
//
// Returns Extractor interface to enforce abstraction.
func NewExtractor() Extractor {
	return &TypedExtractor{
		logger: slog.Default().With("component", "extractor"),
	}
}

// ExtractText extracts plain text from the payload.
// Failures are classified: unknown types and malformed payloads are terminal
// errors the caller should not retry.
func (e *TypedExtractor) ExtractText(ctx context.Context, contentType string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Parameters like "; charset=utf-8" are irrelevant for dispatch.
	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	var (
		text string
		err  error
	)
	switch {
	case mediaType == "application/pdf":
		text, err = extractPDF(payload)
	case mediaType == "text/plain", mediaType == "text/markdown",
		strings.HasPrefix(mediaType, "text/"):
		text, err = extractPlainText(payload)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}

	e.logger.Debug("extracted text", "contentType", mediaType, "bytes", len(payload), "chars", len(text))
	return text, nil
}

// extractPDF parses the payload as a PDF and concatenates the plain text of
// all pages.
func extractPDF(payload []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, content); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return sb.String(), nil
}

// extractPlainText validates the payload as UTF-8 and returns it unchanged.
func extractPlainText(payload []byte) (string, error) {
	if !utf8.Valid(payload) {
		return "", fmt.Errorf("%w: payload is not valid UTF-8", ErrExtractionFailed)
	}
	return string(payload), nil
}
