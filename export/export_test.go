package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "From: Alice <alice@example.com>\r\nSubject: Invoice 123\r\n\r\nGrüße, \xff raw bytes\r\n"

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ext  string
	}{
		{in: "original", want: FormatOriginal, ext: "eml"},
		{in: "PDF", want: FormatPDF, ext: "pdf"},
		{in: " text ", want: FormatText, ext: "txt"},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.ext, got.Extension())
	}

	_, err := ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExport_OriginalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, FormatOriginal)

	path, err := e.Export(1, []byte(sample))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "email_1.eml"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte(sample), got)
}

func TestExport_TextMatchesOriginalBytes(t *testing.T) {
	dir := t.TempDir()

	origPath, err := New(dir, FormatOriginal).Export(1, []byte(sample))
	require.NoError(t, err)
	textPath, err := New(dir, FormatText).Export(2, []byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "email_2.txt", filepath.Base(textPath))

	orig, err := os.ReadFile(origPath)
	require.NoError(t, err)
	text, err := os.ReadFile(textPath)
	require.NoError(t, err)
	assert.Equal(t, orig, text)
}

func TestExport_PDF(t *testing.T) {
	dir := t.TempDir()

	var b strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, "line %d of a long message\n", i)
		if i%10 == 0 {
			b.WriteString("\n")
		}
	}
	b.WriteString(sample)

	path, err := New(dir, FormatPDF).Export(7, []byte(b.String()))
	require.NoError(t, err)
	assert.Equal(t, "email_7.pdf", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "%PDF-"), "artifact is not a PDF")
	assert.GreaterOrEqual(t, strings.Count(string(data), "/Type /Page\n"), 2, "long content should span several pages")
}

func TestExport_PDFEmptyContent(t *testing.T) {
	path, err := New(t.TempDir(), FormatPDF).Export(1, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "/Type /Page\n"))
}

func TestExport_WriteFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")

	for _, format := range []Format{FormatOriginal, FormatText, FormatPDF} {
		_, err := New(missing, format).Export(3, []byte(sample))

		var exportErr *ExportError
		require.True(t, errors.As(err, &exportErr), "format %v: got %v", format, err)
		assert.Equal(t, 3, exportErr.Index)
		assert.ErrorIs(t, err, ErrExport)
	}
}

func TestExport_DoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, FormatText)

	_, err := e.Export(1, []byte("first"))
	require.NoError(t, err)
	_, err = e.Export(1, []byte("second"))
	require.ErrorIs(t, err, ErrExport)

	got, err := os.ReadFile(filepath.Join(dir, "email_1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}
