// Package document turns PDF statements, tickets and photographed receipts
// into finance batches.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/ledongthuc/pdf"
)

// ReadPDFText returns the plain text of every page in data. A PDF without
// extractable text, an encrypted PDF and a corrupt payload all fail with a
// *schema.DocumentReadError.
func ReadPDFText(name string, data []byte) (text string, err error) {
	defer func() {
		// The parser panics on some malformed streams.
		if r := recover(); r != nil {
			text, err = "", readError(name, fmt.Errorf("malformed PDF: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", readError(name, err)
	}
	return pagesText(name, r)
}

// ReadPDFFile is ReadPDFText for a file on disk.
func ReadPDFFile(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", readError(path, fmt.Errorf("malformed PDF: %v", r))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", readError(path, err)
	}
	defer f.Close()
	return pagesText(path, r)
}

func pagesText(name string, r *pdf.Reader) (string, error) {
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", readError(name, fmt.Errorf("page %d: %w", i, err))
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", readError(name, schema.ErrNoText)
	}
	return text, nil
}

func readError(name string, err error) error {
	if errors.Is(err, pdf.ErrInvalidPassword) {
		err = fmt.Errorf("%w: %v", schema.ErrEncrypted, err)
	}
	return &schema.DocumentReadError{Source: name, Err: err}
}

// WithTempFile writes data to a temporary file named after name, runs fn on
// its path and removes the file on every exit path, panics included.
func WithTempFile(name string, data []byte, fn func(path string) error) error {
	f, err := os.CreateTemp("", "lifelog-*-"+safeName(name))
	if err != nil {
		return fmt.Errorf("WithTempFile: create: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("WithTempFile: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("WithTempFile: close: %w", err)
	}
	return fn(path)
}

func safeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '*':
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "upload"
	}
	return name
}
