package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/opgen/am"
)

func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Write the controller registration file",
		Long: `Analyze the configured type source and write a Go file whose
registration function adds every discovered controller to a builder.

The file is replaced atomically and only when the whole pass succeeds; a
failed pass leaves the previous file untouched.

Examples:
  opgen generate                          # Write output.path from opgen.toml
  opgen generate -o - -p app              # Print a file in package app
  opgen generate --mode manifest --manifest types.yaml`,
		Args: cobra.NoArgs,
		RunE: runGenerate,
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := newGenerator(ctx, cfg, newPublisher(cfg, cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	res, err := gen.Run(ctx)
	if err != nil {
		return err
	}

	// stdout carries the generated source, status goes to stderr
	status := cmd.ErrOrStderr()
	for _, d := range res.Diagnostics {
		pterm.Warning.WithWriter(status).Println(d.String())
	}
	if cfg.Output.Path != am.Stdout {
		pterm.Success.WithWriter(status).Printfln("Registered %d controller(s) in %s",
			len(res.Pairs), displayPath(cfg.Output.Path))
	}
	return nil
}
