package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfpages/aggregate"
	"github.com/wudi/pdfpages/ocr"
)

func (a *app) aggregateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate [input-dir]",
		Short: "Combine per-page OCR result files into one JSON document",
		Long: `Aggregate reads every result file in input-dir matching --pattern,
orders them by the page number in their file name and writes one combined
JSON document plus a per-page summary report. Files that fail to parse are
reported and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := a.cfg.Aggregate
			inputDir := conf.InputDir
			if len(args) == 1 {
				inputDir = args[0]
			}
			res, err := aggregate.Run(cmd.Context(), aggregate.RunConfig{
				InputDir:    inputDir,
				Pattern:     stringFlag(cmd, "pattern", conf.Pattern),
				Output:      stringFlag(cmd, "output", conf.Output),
				SummaryPath: stringFlag(cmd, "summary", conf.Summary),
				Format:      strings.ToLower(stringFlag(cmd, "format", conf.Format)),
				Options:     aggregate.Options{Logger: a.log},
			})
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			if res.Empty {
				p.skipped(inputDir, "no result files found")
				return nil
			}
			for _, perr := range res.Errors {
				p.skipped(perr.SourceFile, perr.Err.Error())
			}
			p.done("combined %d page(s)", res.Document.Info.TotalPages)
			p.item("output", stringFlag(cmd, "output", conf.Output))
			if summary := stringFlag(cmd, "summary", conf.Summary); summary != "" {
				p.item("summary", summary)
			}
			return nil
		},
	}
	cmd.Flags().String("pattern", aggregate.DefaultPattern, "glob matching result files")
	cmd.Flags().String("output", aggregate.DefaultOutput, "combined JSON output path")
	cmd.Flags().String("summary", aggregate.DefaultSummary, "summary report path, empty to skip")
	cmd.Flags().String("format", aggregate.FormatText, "summary format: text, markdown or html")
	return cmd
}

func (a *app) ocrCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ocr <image-dir> <output-dir>",
		Short: "Recognize page images and write per-page result files",
		Long: `OCR runs the linked OCR engine over every page image in image-dir, in
natural order, and writes <stem>_res.json result files that aggregate
combines. Binaries built without an engine report an error.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.engine == nil {
				return ocr.ErrNoEngine
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}
			langs := a.cfg.OCR.Languages
			if cmd.Flags().Changed("lang") {
				langs, _ = cmd.Flags().GetStringSlice("lang")
			}
			opts := []ocr.InputOption{ocr.WithLanguages(langs...)}
			if dpi, _ := cmd.Flags().GetInt("dpi"); dpi > 0 {
				opts = append(opts, ocr.WithDPI(dpi))
			}
			if psm, _ := cmd.Flags().GetInt("psm"); psm >= 0 {
				opts = append(opts, ocr.WithTesseractPSM(psm))
			}
			written, err := ocr.RecognizeDir(cmd.Context(), engine, args[0], args[1], ocr.DirOptions{
				Input:  opts,
				Logger: a.log,
			})
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).done("wrote %d result file(s) to %s", len(written), args[1])
			return nil
		},
	}
	cmd.Flags().StringSlice("lang", []string{"eng"}, "OCR language hints")
	cmd.Flags().Int("dpi", 0, "image resolution hint, 0 for unknown")
	cmd.Flags().Int("psm", -1, "tesseract page segmentation mode, -1 for the engine default")
	return cmd
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pdfpages version %s\n", versionString())
		},
	}
}
