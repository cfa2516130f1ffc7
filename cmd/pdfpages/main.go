// Command pdfpages splits, merges and aggregates page-level PDF and OCR
// artifacts.
package main

import "github.com/wudi/pdfpages/cli"

func main() {
	cli.Main(engine)
}
