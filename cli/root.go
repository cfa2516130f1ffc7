// Package cli wires the pdfpages commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wudi/pdfpages/config"
	"github.com/wudi/pdfpages/observability"
	"github.com/wudi/pdfpages/ocr"
	"github.com/wudi/pdfpages/parser"
	"github.com/wudi/pdfpages/recovery"
	"github.com/wudi/pdfpages/writer"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// EngineFactory builds the OCR engine used by the ocr command. It is nil
// unless an engine is linked in.
type EngineFactory func() (ocr.Engine, error)

// app is the state of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	engine EngineFactory

	configPath string
	verbose    int
	logFormat  string

	cfg config.Config
	log observability.Logger
}

// NewRootCommand builds a fresh command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer, engine EngineFactory) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, engine: engine}
	root := &cobra.Command{
		Use:   "pdfpages",
		Short: "Split, merge and aggregate page-level PDF and OCR artifacts",
		Long: `pdfpages splits multi-page PDFs into single-page files, merges page files
back into one document in natural page order, and combines per-page OCR
result files into one indexed JSON document with a summary report.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           Version,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate(fmt.Sprintf("pdfpages %s\n", versionString()))

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	pf.CountVarP(&a.verbose, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		a.splitCommand(),
		a.mergeCommand(),
		a.aggregateCommand(),
		a.ocrCommand(),
		a.versionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code. Errors
// are reported as a single line on stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, engine EngineFactory) int {
	root := NewRootCommand(stdout, stderr, engine)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", oneLine(err))
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbosity = a.verbose
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := observability.NewLogrus(observability.Options{
		Level:  observability.LevelForVerbosity(cfg.Verbosity),
		Format: cfg.LogFormat,
		Output: a.stderr,
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log.With(
		observability.String("run_id", uuid.NewString()),
		observability.String("command", cmd.Name()),
	)
	return nil
}

// parserConfig returns the parse settings for input PDFs.
func (a *app) parserConfig() parser.Config {
	cfg := parser.Config{Limits: a.cfg.Parser.Limits()}
	if a.cfg.Parser.Lenient {
		cfg.Recovery = recovery.NewLoggingStrategy(a.log, recovery.NewLenientStrategy())
	}
	return cfg
}

func (a *app) writerConfig() writer.Config {
	return writer.Config{Producer: "pdfpages " + Version}
}

// boolFlag returns the flag value when set on the command line and the
// configured value otherwise.
func boolFlag(cmd *cobra.Command, name string, configured bool) bool {
	if !cmd.Flags().Changed(name) {
		return configured
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return configured
	}
	return v
}

func stringFlag(cmd *cobra.Command, name string, configured string) string {
	if !cmd.Flags().Changed(name) {
		return configured
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return configured
	}
	return v
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

func oneLine(err error) string {
	return strings.Join(strings.Fields(err.Error()), " ")
}

// Main is the entry point of the pdfpages binary.
func Main(engine EngineFactory) {
	os.Exit(Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr, engine))
}
