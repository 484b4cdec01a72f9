package document

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dvloznov/lifelog/internal/schema"
)

// Kind is the intake path a document takes.
type Kind int

const (
	KindPDF Kind = iota + 1
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// Document is an uploaded payload.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Source is the provenance label stored with every transaction read from d.
func (d Document) Source() string {
	return "doc_parser_" + d.Name
}

// DetectKind picks the intake path from the declared MIME type, falling back
// to the file extension and then to content sniffing. Anything that is
// neither a PDF nor an image fails with a *schema.DocumentReadError wrapping
// schema.ErrUnsupportedMedia.
func DetectKind(d Document) (Kind, string, error) {
	mt := baseType(d.MIMEType)
	if mt == "" || mt == "application/octet-stream" {
		mt = baseType(mime.TypeByExtension(strings.ToLower(filepath.Ext(d.Name))))
	}
	if mt == "" && len(d.Data) > 0 {
		mt = baseType(http.DetectContentType(d.Data))
	}

	switch {
	case mt == "application/pdf":
		return KindPDF, mt, nil
	case strings.HasPrefix(mt, "image/"):
		return KindImage, mt, nil
	default:
		return 0, mt, &schema.DocumentReadError{
			Source: d.Name,
			Err:    fmt.Errorf("%w: %q", schema.ErrUnsupportedMedia, mt),
		}
	}
}

func baseType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}
