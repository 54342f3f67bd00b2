// Package extractor turns statement files into text or spreadsheet rows.
package extractor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for files that are neither text, PDF nor xlsx.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Format is the kind of source document.
type Format string

const (
	FormatPDF         Format = "pdf"
	FormatText        Format = "text"
	FormatSpreadsheet Format = "xlsx"
)

// Detect picks the format from the file extension.
func Detect(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, nil
	case ".txt", ".text":
		return FormatText, nil
	case ".xlsx", ".xlsm":
		return FormatSpreadsheet, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

// ExtractText returns the newline-separated text of a PDF or text document.
func ExtractText(path string) (string, error) {
	format, err := Detect(path)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatPDF:
		return extractPDF(path)
	case FormatText:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("%w: %s has no text layer", ErrUnsupportedFormat, filepath.Base(path))
}
