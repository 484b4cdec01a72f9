// Package storage keeps uploaded documents in Google Cloud Storage and
// fetches them back for analysis.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/lifelog/internal/document"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// Objects is the part of a storage client the GCS type uses.
type Objects interface {
	// NewReader opens an object and reports its content type.
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, string, error)
	// NewWriter creates or replaces an object.
	NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
}

// GCS fetches and uploads documents. It implements pipeline.DocumentFetcher.
type GCS struct {
	objects Objects
	client  *storage.Client
}

// NewGCS creates a GCS using Application Default Credentials.
func NewGCS(ctx context.Context, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{objects: clientObjects{client}, client: client}, nil
}

// NewGCSWithObjects creates a GCS over objects, e.g. a fake in tests.
func NewGCSWithObjects(objects Objects) *GCS {
	return &GCS{objects: objects}
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Fetch downloads the document at a gs:// URI.
func (g *GCS) Fetch(ctx context.Context, gcsURI string) (document.Document, error) {
	bucket, object, err := ParseURI(gcsURI)
	if err != nil {
		return document.Document{}, err
	}

	rc, contentType, err := g.objects.NewReader(ctx, bucket, object)
	if err != nil {
		return document.Document{}, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return document.Document{}, fmt.Errorf("Fetch: reading bytes: %w", err)
	}

	return document.Document{Name: FilenameFromURI(gcsURI), MIMEType: contentType, Data: data}, nil
}

// Upload stores r under object and returns its gs:// URI.
func (g *GCS) Upload(ctx context.Context, bucket, object, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.objects.NewWriter(ctx, bucket, object, contentType)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", bucket, object), nil
}

// UploadFile uploads a local file under a fresh object name and returns its
// gs:// URI.
func (g *GCS) UploadFile(ctx context.Context, bucket, filePath, contentType string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	return g.Upload(ctx, bucket, ObjectName(filepath.Base(filePath), time.Now()), contentType, f)
}

// ObjectName places an upload under a dated prefix with a unique suffix, e.g.
// "uploads/2026/10/17/<uuid>-resumen.pdf".
func ObjectName(filename string, at time.Time) string {
	return fmt.Sprintf("uploads/%s/%s-%s", at.Format("2006/01/02"), uuid.New().String(), path.Base(filename))
}

// ParseURI splits "gs://bucket/path/to/file.pdf" into bucket and object.
func ParseURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	bucket, object, ok := strings.Cut(strings.TrimPrefix(gcsURI, "gs://"), "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return bucket, object, nil
}

// FilenameFromURI extracts the file name from a GCS URI.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	_, object, ok := strings.Cut(trimmed, "/")
	if !ok {
		return trimmed
	}
	return path.Base(object)
}

type clientObjects struct {
	client *storage.Client
}

func (c clientObjects) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, string, error) {
	r, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, "", err
	}
	return r, r.Attrs.ContentType, nil
}

func (c clientObjects) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}
