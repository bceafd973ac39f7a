package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragledger/internal/models"
)

// buildPDF writes a minimal PDF with one Helvetica text line per page; an empty string gives a blank page.
func buildPDF(pages ...string) []byte {
	var objs []string
	pageRefs := make([]string, len(pages))
	n := len(pages)
	fontObj := 3 + 2*n
	for i := range pages {
		pageRefs[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(pageRefs, " "), n),
	)
	for i, text := range pages {
		var content string
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objs = append(objs, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func writeDoc(t *testing.T, name string, data []byte) models.Document {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	ft, err := models.ParseFileType(filepath.Ext(name))
	require.NoError(t, err)
	return models.Document{FileID: "f1", Filename: name, FileType: ft, Path: path}
}

func TestParsePDFSkipsBlankPages(t *testing.T) {
	p := New(zerolog.Nop())
	doc := writeDoc(t, "statement.pdf", buildPDF("Minimum balance is 100 dollars", ""))

	pages, err := p.Parse(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, mo.Some(1), pages[0].Number)
	assert.Contains(t, pages[0].Text, "Minimum balance")
}

func TestParsePDFKeepsPageNumbers(t *testing.T) {
	p := New(zerolog.Nop())
	doc := writeDoc(t, "terms.pdf", buildPDF("", "Overdraft fees", "Interest rates"))

	pages, err := p.Parse(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, mo.Some(2), pages[0].Number)
	assert.Equal(t, mo.Some(3), pages[1].Number)
}

func TestParseCorruptPDF(t *testing.T) {
	p := New(zerolog.Nop())
	doc := writeDoc(t, "broken.pdf", []byte("this is not a pdf"))

	pages, err := p.Parse(context.Background(), doc)
	assert.ErrorIs(t, err, models.ErrExtraction)
	assert.Nil(t, pages)
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "two rows",
			input: "date,amount\n2024-01-02,10.00\n2024-01-03,-4.50\n",
			want:  []string{"Row 1:\ndate: 2024-01-02\namount: 10.00\n\n\nRow 2:\ndate: 2024-01-03\namount: -4.50\n"},
		},
		{
			name:  "bom and short row",
			input: "\ufeffaccount,balance\nchecking\n",
			want:  []string{"Row 1:\naccount: checking\nbalance: \n"},
		},
		{name: "header only", input: "date,amount\n"},
		{name: "empty file", input: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := parseCSV(strings.NewReader(tt.input))
			require.NoError(t, err)
			require.Len(t, pages, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want, pages[i].Text)
				assert.True(t, pages[i].Number.IsAbsent())
			}
		})
	}
}

func TestParseCSVRejectsWideRow(t *testing.T) {
	_, err := parseCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)

	p := New(zerolog.Nop())
	doc := writeDoc(t, "wide.csv", []byte("a,b\n1,2,3\n"))
	_, err = p.Parse(context.Background(), doc)
	assert.ErrorIs(t, err, models.ErrExtraction)
}

func TestParseUnsupportedType(t *testing.T) {
	p := New(zerolog.Nop())
	doc := writeDoc(t, "notes.csv", []byte("a\n1\n"))
	doc.FileType = models.FileType("txt")

	_, err := p.Parse(context.Background(), doc)
	assert.ErrorIs(t, err, models.ErrExtraction)
	assert.ErrorIs(t, err, models.ErrUnsupportedFileType)
}

func TestParseMissingFile(t *testing.T) {
	p := New(zerolog.Nop())
	_, err := p.Parse(context.Background(), models.Document{Filename: "gone.pdf", FileType: models.FileTypePDF, Path: "/nonexistent/gone.pdf"})
	assert.ErrorIs(t, err, models.ErrExtraction)
}
