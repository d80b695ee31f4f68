package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sentinel-review/sentinel/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage harness configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .sentinel.yaml",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE:  runConfigValidate,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		path = ".sentinel.yaml"
	}
	if err := config.WriteDefaultConfig(path, configInitForce); err != nil {
		return err
	}
	cmd.Printf("Wrote %s\n", path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	cmd.Println("Configuration valid.")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	// Dump effective settings after defaults, file, env and flags merged.
	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}
	cmd.Print(string(data))
	return nil
}
