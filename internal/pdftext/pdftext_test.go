package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	stdout []byte
	stderr []byte
	err    error
	args   []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.args = append([]string{name}, args...)
	return s.stdout, s.stderr, s.err
}

// writeTextPDF writes a single-page PDF whose text layer is line.
func writeTextPDF(t *testing.T, dir, name, line string) string {
	t.Helper()
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", line)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestPdftotextSplitsPagesOnFormFeed(t *testing.T) {
	r := &stubRunner{stdout: []byte("page one\fpage two\f")}
	e := NewExtractor(Config{Method: MethodPdftotext}, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), "/tmp/report.pdf")

	require.NoError(t, err)
	assert.Equal(t, "page one\npage two", res.Text)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, []string{"pdftotext", "-layout", "-enc", "UTF-8", "-eol", "unix", "/tmp/report.pdf", "-"}, r.args)
}

func TestPdftotextKeepsBlankPagesInOrder(t *testing.T) {
	r := &stubRunner{stdout: []byte("first\f\fthird\f")}
	res, err := NewExtractor(Config{Method: MethodPdftotext, Pdftotext: "/opt/poppler/pdftotext"}, nil).
		WithRunner(r).
		Extract(context.Background(), "x.pdf")

	require.NoError(t, err)
	assert.Equal(t, "first\n\nthird", res.Text)
	assert.Equal(t, "/opt/poppler/pdftotext", r.args[0])
}

func TestPdftotextFailureIsDecodeError(t *testing.T) {
	r := &stubRunner{stderr: []byte("Syntax Error: Couldn't find trailer dictionary"), err: errors.New("exit status 1")}

	_, err := NewExtractor(Config{Method: MethodPdftotext}, nil).WithRunner(r).Extract(context.Background(), "bad.pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailer dictionary")
}

func TestUnknownMethod(t *testing.T) {
	_, err := NewExtractor(Config{Method: "ocr"}, nil).Extract(context.Background(), "x.pdf")
	assert.ErrorContains(t, err, "unsupported text method")
}

func TestNativeReadsTextLayer(t *testing.T) {
	path := writeTextPDF(t, t.TempDir(), "report.pdf", "Hello AAIB")

	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, MethodNative, res.Method)
	assert.Equal(t, 1, res.Pages)
	assert.Contains(t, res.Text, "Hello AAIB")
}

func TestNativeRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("<html>not found</html>"), 0o644))

	_, err := NewExtractor(Config{}, nil).Extract(context.Background(), path)

	assert.Error(t, err)
}

func TestValidateAndPageCount(t *testing.T) {
	dir := t.TempDir()
	good := writeTextPDF(t, dir, "good.pdf", "ok")
	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("<html>error page</html>"), 0o644))

	require.NoError(t, Validate(good))
	n, err := PageCount(good)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, Validate(bad))
}
