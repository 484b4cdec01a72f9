// Package store defines the persistence boundary: one insert per record
// kind, each keyed for idempotent retries.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/google/uuid"
)

// Sources stamped on persisted records.
const (
	SourceManual   = "telegram_manual"
	SourceAPI      = "api"
	SourceCLI      = "cli"
	MediaTypeText  = "text"
	MediaTypeDoc   = "document"
	MediaTypeImage = "image"
)

// keySpace namespaces every idempotency key.
var keySpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/dvloznov/lifelog/records"))

// Ref identifies one record: where it came from, which message or document
// produced it and its position in a batch.
type Ref struct {
	Source    string
	MessageID string
	Index     int
	UserID    string
	At        time.Time
}

// Key is the idempotency key of the record. Replaying the same message
// yields the same key, so a retried insert is dropped by the sink.
func (r Ref) Key() string {
	return uuid.NewSHA1(keySpace, []byte(fmt.Sprintf("%s|%s|%d", r.Source, r.MessageID, r.Index))).String()
}

// MessageID derives a message id from content and its arrival time, for
// transports that do not supply one.
func MessageID(content string, at time.Time) string {
	sum := sha256.Sum256([]byte(at.UTC().Format(time.RFC3339Nano) + "|" + content))
	return hex.EncodeToString(sum[:12])
}

// DocumentID derives a stable id from a document's bytes.
func DocumentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:12])
}

// RawMessage is the audit log line written before processing.
type RawMessage struct {
	UserID    string
	Content   string
	MediaType string
}

// Recorder inserts one record of each kind. Implementations must treat a
// repeated key as success.
type Recorder interface {
	RecordRawMessage(ctx context.Context, msg RawMessage, ref Ref) error
	RecordTransaction(ctx context.Context, entry schema.FinanceEntry, ref Ref) error
	RecordActivity(ctx context.Context, entry schema.HealthEntry, ref Ref) error
	RecordJournal(ctx context.Context, entry schema.JournalEntry, ref Ref) error
	Close() error
}

// FormatEmbedding renders a vector as a pgvector literal, e.g. "[0.1,0.2]".
func FormatEmbedding(vec []float32) string {
	if len(vec) == 0 {
		return ""
	}
	b := make([]byte, 0, len(vec)*8+2)
	b = append(b, '[')
	for i, v := range vec {
		if i > 0 {
			b = append(b, ',')
		}
		b = fmt.Appendf(b, "%g", v)
	}
	return string(append(b, ']'))
}
