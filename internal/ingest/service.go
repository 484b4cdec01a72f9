// Package ingest turns an incoming message or document into persisted
// records and a short reply for the sender.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/lifelog/internal/document"
	"github.com/dvloznov/lifelog/internal/logger"
	"github.com/dvloznov/lifelog/internal/pipeline"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/store"
	"github.com/shopspring/decimal"
)

// Processor classifies a text and extracts its record.
type Processor interface {
	ProcessInput(ctx context.Context, text string) (pipeline.Result, error)
}

// Message is one text received from a transport.
type Message struct {
	Text      string
	MessageID string
	UserID    string
	Source    string
	At        time.Time
}

// Upload is one document received from a transport. Either Document.Data or
// GCSURI must be set.
type Upload struct {
	Document document.Document
	GCSURI   string
	UserID   string
}

// Reply is what the sender sees, plus the structured outcome.
type Reply struct {
	Text   string           `json:"reply"`
	Result *pipeline.Result `json:"result,omitempty"`
	Saved  int              `json:"saved"`
	Failed int              `json:"failed"`
}

// Service persists processed inputs through a store.Recorder.
type Service struct {
	brain    Processor
	recorder store.Recorder
	docs     *pipeline.Pipeline
	now      func() time.Time
}

// NewService wires a Service. fetcher may be nil when uploads always carry
// their payload.
func NewService(brain Processor, analyzer pipeline.DocumentAnalyzer, fetcher pipeline.DocumentFetcher, recorder store.Recorder) *Service {
	return &Service{
		brain:    brain,
		recorder: recorder,
		docs:     pipeline.NewDocumentIngestionPipeline(fetcher, analyzer, recorder),
		now:      time.Now,
	}
}

// HandleMessage logs the raw text, processes it and records the result. The
// returned Reply is always filled, also when err is not nil.
func (s *Service) HandleMessage(ctx context.Context, msg Message) (Reply, error) {
	msg = s.normalize(msg)
	log := logger.FromContext(ctx).With().
		Str("message_id", msg.MessageID).
		Str("source", msg.Source).
		Logger()

	raw := store.RawMessage{UserID: msg.UserID, Content: msg.Text, MediaType: store.MediaTypeText}
	if err := s.recorder.RecordRawMessage(ctx, raw, s.ref(msg, 0)); err != nil {
		log.Error().Err(err).Msg("Failed to record raw message")
	}

	result, err := s.brain.ProcessInput(ctx, msg.Text)
	if err != nil {
		log.Error().Err(err).Str("excerpt", schema.Excerpt(msg.Text)).Msg("Failed to process message")
		return Reply{Text: "❌ Ocurrió un error procesando tu mensaje:\n" + userMessage(err)}, err
	}

	reply := Reply{Result: &result}
	switch data := result.Data.(type) {
	case schema.FinanceBatch:
		err = s.recordBatch(ctx, msg, data, &reply)
	case schema.HealthEntry:
		err = s.recordOne(ctx, &reply, func() error {
			return s.recorder.RecordActivity(ctx, data, s.ref(msg, 0))
		})
		if err == nil {
			reply.Text = fmt.Sprintf("✅ Actividad guardada:\n🏃 %s\n📋 %s", data.ActivityType, detailsText(data.Details))
		}
	case schema.JournalEntry:
		err = s.recordOne(ctx, &reply, func() error {
			return s.recorder.RecordJournal(ctx, data, s.ref(msg, 0))
		})
		if err == nil {
			reply.Text = fmt.Sprintf("✅ Journal guardado:\n📝 %s\nmood: %d/10", data.ReflectionSummary, data.MoodScore)
		}
	default:
		reply.Text = fmt.Sprintf("⚠️ No estoy seguro de qué hacer con esto (Categoría: %s).\nIntenta ser más específico.", result.Category)
	}
	if err != nil {
		log.Error().Err(err).Str("category", result.Category.String()).Msg("Failed to record message")
		reply.Text = "❌ Error guardando en la base de datos."
		return reply, err
	}

	log.Info().
		Str("category", result.Category.String()).
		Float64("confidence", result.Confidence).
		Int("saved", reply.Saved).
		Msg("Message processed")
	return reply, nil
}

func (s *Service) recordBatch(ctx context.Context, msg Message, batch schema.FinanceBatch, reply *Reply) error {
	if len(batch.Transactions) == 0 {
		reply.Text = "⚠️ Entendí que es finanzas, pero no pude extraer los detalles."
		return nil
	}

	log := logger.FromContext(ctx)
	total := decimal.Zero
	var errs []error
	for i, tx := range batch.Transactions {
		if err := s.recorder.RecordTransaction(ctx, tx, s.ref(msg, i)); err != nil {
			reply.Failed++
			errs = append(errs, err)
			log.Error().Err(err).Int("index", i).Msg("Failed to record transaction")
			continue
		}
		reply.Saved++
		total = total.Add(tx.Amount)
	}
	if reply.Saved == 0 {
		return errors.Join(errs...)
	}

	reply.Text = fmt.Sprintf("✅ Se guardaron %d gastos.\n💰 Total: $%s", reply.Saved, FormatAmount(total))
	if reply.Failed > 0 {
		reply.Text += fmt.Sprintf("\n⚠️ %d no se pudieron guardar.", reply.Failed)
	}
	return nil
}

func (s *Service) recordOne(ctx context.Context, reply *Reply, record func() error) error {
	if err := record(); err != nil {
		reply.Failed++
		return err
	}
	reply.Saved++
	return nil
}

// HandleDocument extracts the transactions of an uploaded document and
// records each of them.
func (s *Service) HandleDocument(ctx context.Context, up Upload) (Reply, error) {
	log := logger.FromContext(ctx).With().
		Str("document", up.Document.Name).
		Str("gcs_uri", up.GCSURI).
		Logger()

	if len(up.Document.Data) > 0 {
		raw := store.RawMessage{UserID: up.UserID, Content: up.Document.Name, MediaType: mediaType(up.Document)}
		ref := store.Ref{Source: up.Document.Source(), MessageID: store.DocumentID(up.Document.Data), Index: -1, UserID: up.UserID, At: s.now()}
		if err := s.recorder.RecordRawMessage(ctx, raw, ref); err != nil {
			log.Error().Err(err).Msg("Failed to record raw message")
		}
	}

	state := &pipeline.PipelineState{GCSURI: up.GCSURI, UserID: up.UserID, Document: up.Document}
	err := s.docs.Execute(ctx, state)
	reply := Reply{Saved: state.Saved, Failed: state.Failed}

	var readErr *schema.DocumentReadError
	switch {
	case errors.As(err, &readErr):
		log.Warn().Err(err).Msg("Document could not be read")
		reply.Text = "⚠️ " + readErr.UserMessage()
		return reply, err
	case err != nil:
		log.Error().Err(err).Msg("Failed to process document")
		reply.Text = "❌ Error procesando el archivo:\n" + userMessage(err)
		return reply, err
	case len(state.Batch.Transactions) == 0:
		reply.Text = "⚠️ No encontré transacciones válidas en el documento."
		return reply, nil
	}

	reply.Text = fmt.Sprintf("✅ Procesamiento completado.\n📄 Transacciones extraídas: %d\n💰 Total detectado: $%s\n\nGuardado en Base de Datos.",
		state.Saved, FormatAmount(state.Total))
	if state.Failed > 0 {
		reply.Text += fmt.Sprintf("\n⚠️ %d no se pudieron guardar.", state.Failed)
	}
	log.Info().Int("saved", state.Saved).Int("failed", state.Failed).Msg("Document processed")
	return reply, nil
}

func (s *Service) normalize(msg Message) Message {
	if msg.At.IsZero() {
		msg.At = s.now()
	}
	if msg.Source == "" {
		msg.Source = store.SourceManual
	}
	if msg.MessageID == "" {
		msg.MessageID = store.MessageID(msg.Text, msg.At)
	}
	return msg
}

func (s *Service) ref(msg Message, index int) store.Ref {
	return store.Ref{Source: msg.Source, MessageID: msg.MessageID, Index: index, UserID: msg.UserID, At: msg.At}
}

func mediaType(d document.Document) string {
	if kind, _, err := document.DetectKind(d); err == nil && kind == document.KindImage {
		return store.MediaTypeImage
	}
	return store.MediaTypeDoc
}

func detailsText(details map[string]any) string {
	b, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprint(details)
	}
	return string(b)
}

// userMessage prefers the friendly text of typed pipeline errors.
func userMessage(err error) string {
	var friendly interface{ UserMessage() string }
	if errors.As(err, &friendly) {
		return friendly.UserMessage()
	}
	return "No pude procesar tu pedido. Probá de nuevo en unos minutos."
}
