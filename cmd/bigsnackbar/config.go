package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/bigsnackbar/internal/config"
)

var configOpts struct {
	init     bool
	force    bool
	validate bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show, create or validate the configuration",
	Long: `Without flags, print the effective configuration as TOML.

  --init       write the default configuration to the config path
  --validate   load the config file and report problems`,
	// The config file may be broken; don't fail before we can report on it.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()
		return nil
	},
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().BoolVar(&configOpts.init, "init", false,
		"Write the default configuration file")
	configCmd.Flags().BoolVar(&configOpts.force, "force", false,
		"With --init, overwrite an existing file")
	configCmd.Flags().BoolVar(&configOpts.validate, "validate", false,
		"Validate the configuration file")
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := globalOpts.configPath
	if path == "" {
		path = config.ConfigPath()
	}

	if configOpts.init && configOpts.validate {
		return errors.New("--init and --validate cannot be combined")
	}

	switch {
	case configOpts.init:
		if _, err := os.Stat(path); err == nil && !configOpts.force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check config file: %w", err)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote default configuration to %s\n", path)
		return nil

	case configOpts.validate:
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "%s does not exist, defaults apply\n", path)
			return nil
		}
		if _, err := config.LoadConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is valid\n", path)
		return nil
	}

	c, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = out.Write(data)
	return err
}
