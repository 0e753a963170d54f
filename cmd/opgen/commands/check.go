package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/opgen/errors"
)

// ErrOutOfDate is returned by check when the registration file differs from
// a fresh pass.
var ErrOutOfDate = errors.New("registration file is out of date")

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the registration file is up to date",
		Long: `Run a pass in memory and compare its output with the registration file
on disk. Nothing is written.

Exit codes:
  0 - Registration file is up to date
  1 - Registration file is out of date (diff shown) or the pass failed

Examples:
  opgen check                        # Verify before committing
  opgen check --config ci/opgen.toml`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireFileOutput(cfg, "check"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := newGenerator(ctx, cfg, nil)
	if err != nil {
		return err
	}
	result, err := gen.Check(ctx, cfg.Output.Path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	path := displayPath(result.Path)
	if result.UpToDate {
		pterm.Success.WithWriter(out).Printfln("%s is up to date (%d controllers)", path, len(result.Pairs))
		return nil
	}

	pterm.Error.WithWriter(out).Printfln("%s is out of date", path)
	fmt.Fprint(out, result.Diff)
	return errors.WithHint(
		errors.Wrapf(ErrOutOfDate, "%s", path),
		"run 'opgen generate' to update it")
}
