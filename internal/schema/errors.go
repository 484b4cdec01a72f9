package schema

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentinel errors for errors.Is checks across the pipeline.
var (
	// ErrInvalidRecord marks a record that violates its schema.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyInput is returned when the core is handed blank text.
	ErrEmptyInput = errors.New("empty input")

	// ErrNoText means a document produced no extractable text.
	ErrNoText = errors.New("no extractable text")

	// ErrEncrypted means a document is password protected.
	ErrEncrypted = errors.New("document is encrypted")

	// ErrUnsupportedMedia means the payload is neither a PDF nor an image.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrDimensionMismatch means an embedding has the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Stage names the pipeline step a failure came from.
type Stage string

const (
	StageRouting   Stage = "routing"
	StageFinance   Stage = "finance"
	StageHealth    Stage = "health"
	StageJournal   Stage = "journal"
	StageEmbedding Stage = "embedding"
	StageDocument  Stage = "document"
)

const excerptRunes = 80

// Excerpt shortens text for logs and error messages.
func Excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:excerptRunes]) + "…"
}

// ClassificationError reports that the router produced no usable decision.
type ClassificationError struct {
	Excerpt string
	Err     error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed for %q: %v", e.Excerpt, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// UserMessage is safe to show to the person who sent the input.
func (e *ClassificationError) UserMessage() string {
	return "No pude clasificar tu mensaje. Probá de nuevo en unos minutos."
}

// ExtractionError reports that a domain extractor failed or produced a record
// that does not satisfy its schema. No partial record accompanies it.
type ExtractionError struct {
	Stage   Stage
	Excerpt string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed for %q: %v", e.Stage, e.Excerpt, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UserMessage is safe to show to the person who sent the input.
func (e *ExtractionError) UserMessage() string {
	switch e.Stage {
	case StageFinance, StageDocument:
		return "Entendí que es un gasto, pero no pude extraer los detalles."
	case StageHealth:
		return "Entendí que es una actividad, pero no pude extraer los detalles."
	case StageJournal, StageEmbedding:
		return "Entendí que es una entrada de diario, pero no pude procesarla."
	default:
		return "No pude procesar tu mensaje."
	}
}

// DocumentReadError is terminal: the document cannot be turned into text.
// Retrying the same payload will fail the same way.
type DocumentReadError struct {
	Source string
	Err    error
}

func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("reading document %q: %v", e.Source, e.Err)
}

func (e *DocumentReadError) Unwrap() error { return e.Err }

// UserMessage explains the cause in plain words.
func (e *DocumentReadError) UserMessage() string {
	switch {
	case errors.Is(e.Err, ErrEncrypted):
		return "Error leyendo PDF: el documento está protegido con contraseña."
	case errors.Is(e.Err, ErrNoText):
		return "Error leyendo PDF: no se pudo extraer texto. Puede ser un escaneo o estar encriptado."
	case errors.Is(e.Err, ErrUnsupportedMedia):
		return "Formato no soportado. Solo acepto PDF o imágenes."
	default:
		return "Error leyendo el documento: el archivo parece estar dañado."
	}
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidRecord, field, fmt.Sprintf(format, args...))
}
