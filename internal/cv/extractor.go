package cv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"go.uber.org/zap"
)

const (
	// MaxFileSize caps uploads at 10 MiB.
	MaxFileSize = 10 << 20

	// Extractions shorter than this are treated as empty: a scanned image
	// PDF or a corrupt file, not a usable CV.
	minTextRunes = 50
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file exceeds maximum size")
	ErrEmptyDocument     = errors.New("no text content could be extracted")
	ErrExtraction        = errors.New("text extraction failed")
)

// allowedMIMEs maps the accepted upload types to their extensions.
var allowedMIMEs = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

// MIMEForFilename guesses a MIME type from the file extension, for clients
// that upload without a Content-Type. Empty string when unrecognized.
func MIMEForFilename(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for mime, allowed := range allowedMIMEs {
		if ext == allowed {
			return mime
		}
	}
	return ""
}

type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Validate checks the upload against the format allow-list and size cap
// before anything is persisted or any external call is made.
func (e *Extractor) Validate(mimeType string, size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w (max %d MiB)", ErrFileTooLarge, MaxFileSize>>20)
	}
	if _, ok := allowedMIMEs[mimeType]; !ok {
		return fmt.Errorf("%w: %s (supported: PDF, DOC, DOCX)", ErrUnsupportedFormat, mimeType)
	}
	return nil
}

// Extract converts the uploaded document to plain text.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, ok := allowedMIMEs[mimeType]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}

	res, err := docconv.Convert(bytes.NewReader(data), mimeType, true)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	text := strings.TrimSpace(res.Body)
	if len([]rune(text)) < minTextRunes {
		return "", ErrEmptyDocument
	}

	e.logger.Debug("extracted cv text",
		zap.String("mime_type", mimeType),
		zap.Int("file_size", len(data)),
		zap.Int("text_length", len(text)))
	return text, nil
}
