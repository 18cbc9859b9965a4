package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"github.com/paracelsus/martpipe/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the martpipe config file",
	Long:  `Manage the martpipe config file`,
}

// configInitCmd writes a config file populated with defaults for the user
// to edit.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file populated with defaults",
	Long:  `Create a config file populated with defaults`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFlags.file
		if path == "" {
			var err error
			if path, err = config.DefaultPath(); err != nil {
				return err
			}
		}
		if _, err := os.Stat(path); err == nil && !configFlags.force { // if the file exists already...
			return errors.Errorf("config file %v exists, use --force to overwrite", path)
		}
		if err := config.Save(config.NewConfig(), path); err != nil {
			return err
		}
		fmt.Println("Config file created:", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config including environment overrides",
	Long:  `Print the effective config including environment overrides`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFlags.file
		if path == "" {
			var err error
			if path, err = config.DefaultPath(); err != nil {
				return err
			}
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(b))
		return nil
	},
}

var configFlags = struct {
	file  string
	force bool
}{}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	switches.addFlag(configInitCmd, &configFlags.file, "config-file", "", false)
	switches.addFlag(configInitCmd, &configFlags.force, "force-config", "", false)
	switches.addFlag(configShowCmd, &configFlags.file, "config-file", "", false)
}
