package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dvloznov/lifelog/internal/extract"
	"github.com/dvloznov/lifelog/internal/llm"
	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/taxonomy"
	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var invocation = time.Date(2026, time.October, 17, 10, 0, 0, 0, time.UTC)

// buildPDF writes a one-page PDF whose content stream is content.
func buildPDF(content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

type recorder struct {
	answer   string
	requests []llm.Request
}

func (r *recorder) Generate(ctx context.Context, req llm.Request) (string, error) {
	r.requests = append(r.requests, req)
	return r.answer, nil
}

const statementAnswer = `{"transactions":[
	{"amount":12500.5,"currency":null,"category":"Supermercado","merchant":"Coto","item":"Compra Coto","date":"2026-10-02","is_client_expense":false},
	{"amount":8000,"currency":"USD","category":"Ocio","merchant":"Steam","item":"Juego","date":"2026-10-05","is_client_expense":false}
]}`

func TestReadPDFText(t *testing.T) {
	text, err := ReadPDFText("statement.pdf", buildPDF("BT /F1 12 Tf 72 720 Td (Compra Coto 12500) Tj ET"))
	require.NoError(t, err)
	assert.Contains(t, text, "Coto")
}

func TestReadPDFTextWithoutText(t *testing.T) {
	_, err := ReadPDFText("scan.pdf", buildPDF(""))
	require.Error(t, err)

	var readErr *schema.DocumentReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, "scan.pdf", readErr.Source)
	assert.ErrorIs(t, err, schema.ErrNoText)
	assert.Contains(t, readErr.UserMessage(), "no se pudo extraer texto")
}

func TestReadPDFTextCorrupt(t *testing.T) {
	for name, data := range map[string][]byte{
		"not a pdf": []byte("hello world"),
		"truncated": buildPDF("BT (x) Tj ET")[:60],
		"empty":     nil,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadPDFText("broken.pdf", data)
			var readErr *schema.DocumentReadError
			require.True(t, errors.As(err, &readErr))
			assert.NotErrorIs(t, err, schema.ErrNoText)
		})
	}
}

func TestReadErrorMapsEncryption(t *testing.T) {
	err := readError("locked.pdf", pdf.ErrInvalidPassword)
	assert.ErrorIs(t, err, schema.ErrEncrypted)

	var readErr *schema.DocumentReadError
	require.True(t, errors.As(err, &readErr))
	assert.Contains(t, readErr.UserMessage(), "contraseña")
}

func TestWithTempFileRemovesFile(t *testing.T) {
	var seen string
	err := WithTempFile("resumen.pdf", []byte("data"), func(path string) error {
		seen = path
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "data", string(got))
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	_, statErr := os.Stat(seen)
	assert.True(t, os.IsNotExist(statErr))

	assert.Panics(t, func() {
		_ = WithTempFile("../x.pdf", nil, func(path string) error {
			seen = path
			panic("mid-processing")
		})
	})
	_, statErr = os.Stat(seen)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want Kind
		mime string
	}{
		{name: "declared pdf", doc: Document{Name: "a", MIMEType: "application/pdf"}, want: KindPDF, mime: "application/pdf"},
		{name: "declared jpeg", doc: Document{Name: "a", MIMEType: "image/jpeg"}, want: KindImage, mime: "image/jpeg"},
		{name: "png by extension", doc: Document{Name: "ticket.PNG", MIMEType: "application/octet-stream"}, want: KindImage, mime: "image/png"},
		{name: "pdf by content", doc: Document{Name: "blob", Data: buildPDF("")}, want: KindPDF, mime: "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, mt, err := DetectKind(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, tt.mime, mt)
		})
	}

	_, _, err := DetectKind(Document{Name: "notes.txt", MIMEType: "text/plain"})
	assert.ErrorIs(t, err, schema.ErrUnsupportedMedia)
}

func TestAnalyzeText(t *testing.T) {
	m := &recorder{answer: statementAnswer}
	a := NewAnalyzer(m, nil, taxonomy.Household(), extract.Fixed(invocation))

	batch, err := a.AnalyzeText(context.Background(), "RESUMEN VISA ... COTO 12.500,50", "doc_parser_resumen.pdf")
	require.NoError(t, err)
	require.Len(t, batch.Transactions, 2)

	coto := batch.Transactions[0]
	assert.Equal(t, "ARS", coto.Currency)
	assert.Equal(t, "Coto", coto.Merchant)
	assert.True(t, coto.Amount.Equal(decimal.RequireFromString("12500.5")))
	assert.Equal(t, "USD", batch.Transactions[1].Currency)

	require.Len(t, m.requests, 1)
	req := m.requests[0]
	assert.Nil(t, req.Media)
	assert.Contains(t, req.System, "Ignore payments of the card itself")
	assert.Contains(t, req.System, `use "ARS"`)
}

func TestAnalyzePDFWithoutTextNeverCallsModel(t *testing.T) {
	m := &recorder{answer: statementAnswer}
	a := NewAnalyzer(m, m, taxonomy.Household(), extract.Fixed(invocation))

	batch, err := a.Analyze(context.Background(), Document{Name: "scan.pdf", MIMEType: "application/pdf", Data: buildPDF("")})
	require.Error(t, err)
	assert.Empty(t, batch.Transactions)

	var readErr *schema.DocumentReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, "scan.pdf", readErr.Source)
	assert.ErrorIs(t, err, schema.ErrNoText)
	assert.Empty(t, m.requests)
}

func TestAnalyzePDF(t *testing.T) {
	m := &recorder{answer: statementAnswer}
	a := NewAnalyzer(m, nil, taxonomy.Household(), extract.Fixed(invocation))

	batch, err := a.Analyze(context.Background(), Document{
		Name:     "resumen.pdf",
		MIMEType: "application/pdf",
		Data:     buildPDF("BT /F1 12 Tf 72 720 Td (COTO 12500,50) Tj ET"),
	})
	require.NoError(t, err)
	assert.Len(t, batch.Transactions, 2)
	require.Len(t, m.requests, 1)
	assert.Contains(t, m.requests[0].Input, "COTO")
}

func TestAnalyzeImageUsesVisionModel(t *testing.T) {
	text := &recorder{answer: statementAnswer}
	vision := &recorder{answer: `{"transactions":[{"amount":2300,"category":"Supermercado","merchant":"Día","date":null,"is_client_expense":false}]}`}
	a := NewAnalyzer(text, vision, taxonomy.Household(), extract.Fixed(invocation))

	img := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	batch, err := a.Analyze(context.Background(), Document{Name: "ticket.jpg", MIMEType: "image/jpeg", Data: img})
	require.NoError(t, err)
	require.Len(t, batch.Transactions, 1)
	assert.Equal(t, "2026-10-17", batch.Transactions[0].Date)

	assert.Empty(t, text.requests)
	require.Len(t, vision.requests, 1)
	require.NotNil(t, vision.requests[0].Media)
	assert.Equal(t, "image/jpeg", vision.requests[0].Media.MIMEType)
	assert.Equal(t, img, vision.requests[0].Media.Data)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{name: "no transactions key", answer: `{"items":[]}`},
		{name: "unknown category", answer: `{"transactions":[{"amount":10,"category":"Cripto","merchant":"Binance","is_client_expense":false}]}`},
		{name: "not json", answer: `lo siento`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(&recorder{answer: tt.answer}, nil, taxonomy.Household(), extract.Fixed(invocation))
			_, err := a.AnalyzeText(context.Background(), "RESUMEN", "doc_parser_x.pdf")
			var extErr *schema.ExtractionError
			require.True(t, errors.As(err, &extErr))
			assert.Equal(t, schema.StageDocument, extErr.Stage)
		})
	}
}

func TestAnalyzeEmptyStatement(t *testing.T) {
	a := NewAnalyzer(&recorder{answer: `{"transactions":[]}`}, nil, taxonomy.Household(), extract.Fixed(invocation))
	batch, err := a.AnalyzeText(context.Background(), "Saldo anterior 1000", "doc_parser_x.pdf")
	require.NoError(t, err)
	assert.Empty(t, batch.Transactions)
}

func TestDocumentSource(t *testing.T) {
	assert.Equal(t, "doc_parser_resumen.pdf", Document{Name: "resumen.pdf"}.Source())
}
