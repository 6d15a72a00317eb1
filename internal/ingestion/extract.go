// Package ingestion extracts plain text from uploaded files ahead of
// chunking and embedding.
package ingestion

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// ErrNoText is returned when a file yields no extractable text.
var ErrNoText = errors.New("ingestion: no extractable text")

// ExtractText pulls the text content out of a file based on its extension.
// PDFs go through the pdf reader with a pdftotext fallback for scanned or
// oddly encoded files; everything else is read as plain text.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrap(err, "read file")
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", ErrNoText
		}
		return text, nil
	}
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open pdf")
	}
	defer f.Close()

	var buf bytes.Buffer
	reader, err := r.GetPlainText()
	if err == nil {
		if _, err := io.Copy(&buf, reader); err != nil {
			return "", errors.Wrap(err, "read pdf text")
		}
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		// Scanned PDFs often carry no text layer the reader can see.
		if out, err := exec.Command("pdftotext", "-layout", path, "-").Output(); err == nil {
			text = strings.TrimSpace(string(out))
		}
	}
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
