//go:build !tesseract

package main

import "github.com/wudi/pdfpages/cli"

// engine is nil without the tesseract build tag; the ocr command then
// reports that no engine is available.
var engine cli.EngineFactory
