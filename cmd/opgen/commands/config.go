package commands

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/opgen/am"
	"github.com/teranos/opgen/display"
	"github.com/teranos/opgen/errors"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show, validate or initialize opgen configuration",
		Long: `Display and manage opgen configuration.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (OPGEN_* prefix)
3. Project config (opgen.toml, searched upwards) or --config
4. User config (~/.opgen/opgen.toml)
5. Default values

Examples:
  opgen config show                   # Effective configuration as TOML
  opgen config show --format json
  opgen config where                  # Where each setting comes from
  opgen config validate
  opgen config init                   # Write a starter opgen.toml`,
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, format)
		},
	}
	showCmd.Flags().StringVar(&format, "format", "toml", "Output format: toml, json, yaml")

	var whereFormat string
	whereCmd := &cobra.Command{
		Use:   "where",
		Short: "Show where each setting comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigWhere(cmd, whereFormat)
		},
	}
	whereCmd.Flags().StringVar(&whereFormat, "format", "table", "Output format: table, json")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigValidate,
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter opgen.toml",
		Long: `Write opgen.toml holding the built-in defaults into dir (default: the
working directory). An existing file is only replaced with --force and is
then kept as opgen.toml.back1.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, args, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing opgen.toml")

	configCmd.AddCommand(showCmd, whereCmd, validateCmd, initCmd)
	return configCmd
}

func runConfigShow(cmd *cobra.Command, format string) error {
	if _, err := am.Load(); err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	settings := am.GetViper().AllSettings()
	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		format = "json"
	}

	switch format {
	case "json":
		return display.OutputJSON(out, settings)
	case "yaml":
		data, err := yaml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# opgen configuration\n%s", data)
	case "toml":
		data, err := toml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(out, "# opgen configuration\n%s", data)
	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", format)
	}
	return nil
}

func runConfigWhere(cmd *cobra.Command, format string) error {
	intro, err := am.GetConfigIntrospection(changedFlags(cmd.Flags()))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		format = "json"
	}

	switch format {
	case "json":
		return display.OutputJSON(out, intro)
	case "table":
	default:
		return errors.Newf("unsupported format: %s (supported: table, json)", format)
	}

	configFile := intro.ConfigFile
	if configFile == "" {
		configFile = "none"
	}
	fmt.Fprintf(out, "Config file: %s\n\n", configFile)

	data := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range intro.Settings {
		value := fmt.Sprintf("%v", s.Value)
		// Truncate long values
		if len(value) > 50 {
			value = value[:47] + "..."
		}
		data = append(data, []string{s.Key, value, string(s.Source), s.SourcePath})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(out).Render()
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	pterm.Success.WithWriter(cmd.OutOrStdout()).Println("Configuration is valid")
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string, force bool) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return errors.Newf("%s is not a directory", dir)
	}

	path, err := am.InitProjectConfig(dir, force)
	if err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Wrote %s", path)
	return nil
}
