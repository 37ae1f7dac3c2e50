package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"crateslsp/internal/diagnose"
)

var checkCmd = &cobra.Command{
	Use:          "check [flags] <Cargo.toml>",
	Short:        "Diagnose a manifest on disk and print the findings",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runCheck,
}

func init() {
	checkCmd.Flags().String("color", "auto", "colorize output (auto|on|off)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	setupColor(cmd)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	synth := newSynthesizer(cfg, logger)
	diagnostics, err := synth.Collect(cmd.Context(), string(data))
	if err != nil {
		return fmt.Errorf("diagnose %s: %w", args[0], err)
	}

	errorCount := 0
	for _, d := range diagnostics {
		if d.Severity == diagnose.SevError {
			errorCount++
		}
		printDiagnostic(args[0], d)
	}
	if len(diagnostics) == 0 {
		fmt.Println("no dependencies to diagnose")
	}
	if errorCount > 0 {
		return fmt.Errorf("%d dependency error(s)", errorCount)
	}
	return nil
}

func setupColor(cmd *cobra.Command) {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	}
}

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	infoColor  = color.New(color.FgCyan)
	hintColor  = color.New(color.FgGreen)
)

func printDiagnostic(path string, d diagnose.Diagnostic) {
	paint := infoColor
	switch d.Severity {
	case diagnose.SevError:
		paint = errorColor
	case diagnose.SevWarning:
		paint = warnColor
	case diagnose.SevHint:
		paint = hintColor
	}
	// First message line carries the classification label.
	label, _, _ := strings.Cut(d.Message, "\n")
	fmt.Printf("%s:%d:%d: %s %s\n",
		path,
		d.Range.Start.Line+1,
		d.Range.Start.Character+1,
		paint.Sprint(d.Severity.String()),
		label)
}
