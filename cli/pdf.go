package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfpages/assemble"
	"github.com/wudi/pdfpages/fault"
	"github.com/wudi/pdfpages/observability"
	"github.com/wudi/pdfpages/pageset"
)

func (a *app) splitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <input>... <output-dir>",
		Short: "Split PDFs into single-page files",
		Long: `Split writes every page of each input PDF to <output-dir> as
<stem>_page_<n>.pdf. Inputs may be files or directories of PDFs.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, outDir := args[:len(args)-1], args[len(args)-1]
			recursive := boolFlag(cmd, "recursive", a.cfg.Recursive)
			files, err := a.collect(cmd.Context(), inputs, recursive)
			if err != nil {
				return err
			}
			jobs := a.cfg.Jobs
			if cmd.Flags().Changed("jobs") {
				jobs, _ = cmd.Flags().GetInt("jobs")
			}
			if jobs < 1 {
				return fmt.Errorf("--jobs must be at least 1")
			}
			written, err := assemble.SplitAll(cmd.Context(), files, outDir, assemble.SplitOptions{
				Overwrite: boolFlag(cmd, "overwrite", a.cfg.Overwrite),
				Jobs:      jobs,
				Logger:    a.log,
				Parser:    a.parserConfig(),
				Writer:    a.writerConfig(),
			})
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			total := 0
			for i, pages := range written {
				total += len(pages)
				p.item(filepath.Base(files[i]), fmt.Sprintf("%d pages", len(pages)))
			}
			a.log.Info(fmt.Sprintf("Successfully created %d files in %s", total, outDir))
			p.done("split %d file(s) into %d page file(s) in %s", len(files), total, outDir)
			return nil
		},
	}
	cmd.Flags().BoolP("recursive", "r", false, "search input directories recursively")
	cmd.Flags().BoolP("overwrite", "o", false, "replace existing page files")
	cmd.Flags().IntP("jobs", "j", 1, "number of inputs split concurrently")
	return cmd
}

func (a *app) mergeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <output> <input>...",
		Short: "Merge PDFs into one document in natural page order",
		Long: `Merge collects PDFs from the inputs (files or directories), drops
duplicates, orders them naturally (page_2 before page_10) and writes all
their pages to <output>.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, inputs := args[0], args[1:]
			files, err := a.collect(cmd.Context(), inputs, boolFlag(cmd, "recursive", a.cfg.Recursive))
			if err != nil {
				return err
			}
			err = assemble.Merge(cmd.Context(), files, output, assemble.MergeOptions{
				Overwrite: boolFlag(cmd, "overwrite", a.cfg.Overwrite),
				Logger:    a.log,
				Parser:    a.parserConfig(),
				Writer:    a.writerConfig(),
			})
			if err != nil {
				return err
			}
			a.log.Info("Successfully saved merged PDF", observability.String("path", output))
			newPrinter(cmd.OutOrStdout()).done("merged %d file(s) into %s", len(files), output)
			return nil
		},
	}
	cmd.Flags().BoolP("recursive", "r", false, "search input directories recursively")
	cmd.Flags().BoolP("overwrite", "o", false, "replace the output file if it exists")
	return cmd
}

// collect resolves inputs to PDF paths: deduplicated, then naturally
// ordered. It fails with ErrEmptyInput when nothing is found, or with the
// extension error when every explicit file was rejected.
func (a *app) collect(ctx context.Context, inputs []string, recursive bool) ([]string, error) {
	specs := make([]pageset.Input, len(inputs))
	for i, in := range inputs {
		specs[i] = pageset.Input{Path: in, Recursive: recursive}
	}
	res, err := pageset.Collect(ctx, specs, pageset.CollectOptions{Logger: a.log})
	if err != nil {
		return nil, err
	}
	files := pageset.Sort(pageset.Dedupe(res.Files))
	a.log.Debug("collected inputs", observability.Int("files", len(files)), observability.Int("skipped", len(res.Skipped)))
	if len(files) == 0 {
		if len(res.Skipped) > 0 {
			s := res.Skipped[0]
			return nil, fault.InvalidFormat(s.Path, errors.New(s.Reason))
		}
		return nil, fault.New(fault.ErrEmptyInput, "", errors.New("no PDF files found"))
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths, nil
}
