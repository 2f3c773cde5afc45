package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// ErrUnreadable marks a document whose PDF structure could not be read.
var ErrUnreadable = errors.New("unreadable pdf")

// File is one uploaded document stream.
type File struct {
	Name string
	Data io.ReadSeeker
}

// ExtractText returns the plain text of every page of every file, in upload and page order.
// Nothing is inserted between pages or files. Pages without extractable text add nothing.
func ExtractText(files []File) (string, error) {
	var text strings.Builder
	for _, f := range files {
		content, err := extractPDF(f.Data)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from %s: %w: %w", f.Name, ErrUnreadable, err)
		}
		log.Debug().Str("file", f.Name).Int("chars", len(content)).Msg("Extracted text")
		text.WriteString(content)
	}
	return text.String(), nil
}

func extractPDF(rs io.ReadSeeker) (text string, err error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return "", err
	}
	// rewind so a stream read by an earlier pass is read from the start
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	ra, ok := rs.(io.ReaderAt)
	if !ok {
		data, err := io.ReadAll(rs)
		if err != nil {
			return "", err
		}
		ra = bytes.NewReader(data)
		size = int64(len(data))
	}

	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(ra, size)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		b.WriteString(pageText)
	}
	return b.String(), nil
}

// OpenFiles opens PDF files from disk. The returned closer releases all of them.
func OpenFiles(paths []string) ([]File, func(), error) {
	var files []File
	closeAll := func() {
		for _, f := range files {
			if c, ok := f.Data.(io.Closer); ok {
				c.Close()
			}
		}
	}
	for _, p := range paths {
		if !IsPDF(p) {
			closeAll()
			return nil, nil, fmt.Errorf("unsupported file format: %s", filepath.Ext(p))
		}
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, File{Name: filepath.Base(p), Data: f})
	}
	return files, closeAll, nil
}

// IsPDF reports whether name carries a .pdf extension.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
