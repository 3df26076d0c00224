// Package export writes matched messages to the run's output directory.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format selects the artifact encoding.
type Format int

const (
	FormatOriginal Format = iota
	FormatPDF
	FormatText
)

var (
	ErrUnknownFormat = errors.New("unknown output format")
	ErrExport        = errors.New("export failed")
)

// ParseFormat maps the user-facing names original, pdf and text to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "original":
		return FormatOriginal, nil
	case "pdf":
		return FormatPDF, nil
	case "text":
		return FormatText, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) String() string {
	switch f {
	case FormatOriginal:
		return "original"
	case FormatPDF:
		return "pdf"
	case FormatText:
		return "text"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Extension returns the artifact file extension without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatText:
		return "txt"
	default:
		return "eml"
	}
}

// ExportError reports a single artifact that could not be written.
type ExportError struct {
	Index int
	Path  string
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

func (e *ExportError) Is(target error) bool { return target == ErrExport }

// Exporter writes one artifact per call into a fixed directory.
type Exporter struct {
	dir    string
	format Format
}

func New(dir string, format Format) *Exporter {
	return &Exporter{dir: dir, format: format}
}

// Filename returns the artifact name for a 1-based match index.
func (e *Exporter) Filename(index int) string {
	return fmt.Sprintf("email_%d.%s", index, e.format.Extension())
}

// Export writes content as artifact number index and returns its path.
func (e *Exporter) Export(index int, content []byte) (string, error) {
	path := filepath.Join(e.dir, e.Filename(index))

	var err error
	switch e.format {
	case FormatOriginal, FormatText:
		err = writeVerbatim(path, content)
	case FormatPDF:
		err = writePDF(path, content)
	default:
		err = fmt.Errorf("%w: %v", ErrUnknownFormat, e.format)
	}
	if err != nil {
		return "", &ExportError{Index: index, Path: path, Err: err}
	}
	return path, nil
}

func writeVerbatim(path string, content []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(content); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
