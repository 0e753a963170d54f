// Package commands implements the opgen command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teranos/opgen/am"
	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/logger"
)

// flagKeys binds persistent flags to configuration keys. Flags set on the
// command line override every other configuration source.
var flagKeys = map[string]string{
	"output":    "output.path",
	"package":   "output.package",
	"mode":      "source.mode",
	"dir":       "source.dir",
	"manifest":  "source.manifest",
	"interface": "generator.interface",
	"strict":    "generator.strict_markers",
	"no-cache":  "cache.enabled",
}

// NewRootCmd builds the opgen command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "opgen",
		Short: "Generate controller registrations from Go types",
		Long: `opgen finds every controller that implements the generic EntityController
interface, directly or through embedded base types, and writes a Go file
that registers each controller for its entity type.

Configuration is read from opgen.toml (searched upwards from the working
directory), ~/.opgen/opgen.toml and OPGEN_* environment variables.

Available commands:
  generate - Write the registration file (default)
  check    - Fail when the registration file is out of date
  watch    - Regenerate whenever sources change
  config   - Show, validate or initialize configuration
  version  - Show version information

Examples:
  opgen                              # Generate using opgen.toml
  opgen --output -                   # Print the registration file
  opgen check                        # Verify in CI
  opgen watch -v                     # Regenerate on save`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbosity, _ := cmd.Flags().GetCount("verbose")
			jsonOutput, _ := cmd.Flags().GetBool("json")
			if err := logger.Initialize(jsonOutput, verbosity); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			configFile, _ := cmd.Flags().GetString("config")
			am.SetConfigFile(configFile)
			return bindFlags(cmd.Flags())
		},
		RunE: runGenerate,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: opgen.toml searched upwards)")
	flags.CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	flags.Bool("json", false, "Emit logs as JSON")
	flags.StringP("output", "o", am.DefaultOutputPath, "Registration file to write, - for stdout")
	flags.StringP("package", "p", "main", "Package clause of the registration file")
	flags.String("mode", am.SourceModeGo, "Type source: go or manifest")
	flags.String("dir", ".", "Module directory analyzed in go mode")
	flags.String("manifest", "", "Type manifest read in manifest mode")
	flags.String("interface", "", "Qualified name of the controller interface")
	flags.Bool("strict", false, "Fail when an entity has no resource marker")
	flags.Bool("no-cache", false, "Disable the resolution cache")

	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// bindFlags feeds changed flags into the configuration. Only flags given on
// the command line are bound so their defaults never mask config files.
func bindFlags(flags *pflag.FlagSet) error {
	v := am.GetViper()
	var bindErr error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if f.Name == "no-cache" {
			v.Set(key, f.Value.String() != "true")
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = errors.Wrapf(err, "failed to bind --%s", f.Name)
		}
	})
	return bindErr
}

// changedFlags maps configuration keys to the flags that set them.
func changedFlags(flags *pflag.FlagSet) map[string]string {
	changed := make(map[string]string)
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			changed[key] = f.Name
		}
	})
	return changed
}
