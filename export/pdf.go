package export

import (
	"bufio"
	"bytes"
	"os"

	"github.com/go-pdf/fpdf"

	"github.com/dhcgn/mbox-ediscovery/extract"
)

const (
	pdfFontFamily = "Courier"
	pdfFontSize   = 10
	pdfLineHeight = 5.0
	pdfPageBreakY = 270.0
)

// writePDF renders content on A4 pages, one cell per source line.
func writePDF(path string, content []byte) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreator("mbox-ediscovery", true)
	pdf.SetFont(pdfFontFamily, "", pdfFontSize)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), len(content)+1)
	for scanner.Scan() {
		if pdf.GetY() > pdfPageBreakY {
			pdf.AddPage()
		}
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			pdf.Ln(pdfLineHeight)
			continue
		}
		pdf.MultiCell(0, pdfLineHeight, tr(extract.Sanitize(line)), "", "L", false)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := pdf.Error(); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := pdf.Output(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
