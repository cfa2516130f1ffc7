//go:build tesseract

package main

import (
	"github.com/wudi/pdfpages/cli"
	"github.com/wudi/pdfpages/ocr"
	"github.com/wudi/pdfpages/ocr/tesseract"
)

var engine cli.EngineFactory = func() (ocr.Engine, error) {
	return tesseract.NewTesseractEngine(), nil
}
