package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/sidenote/internal/config"
	"github.com/rohankatakam/sidenote/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage sidenote configuration",
	Long:  `View, create and validate sidenote configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the current settings",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	RunE:  runConfigValidate,
}

var configDSNCmd = &cobra.Command{
	Use:   "dsn [dsn]",
	Short: "Store the PostgreSQL DSN in the OS keychain",
	Long: `Store the PostgreSQL DSN, password included, in the OS keychain so config
files never carry it. Without an argument the configured DSN is moved there.
POSTGRES_DSN in the environment still takes precedence.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigDSN,
}

var (
	configForce     bool
	configDSNDelete bool
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configDSNCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configDSNCmd.Flags().BoolVar(&configDSNDelete, "delete", false, "remove the DSN from the keychain")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	shown.Storage.PostgresDSN = maskDSN(shown.Storage.PostgresDSN)

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityCritical, "encode config")
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = filepath.Join(config.DirName, "config.yaml")
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return errors.ValidationErrorf("%s already exists (use --force to overwrite)", path)
	}

	out := cmd.OutOrStdout()
	if _, hasPassword := config.StripPassword(cfg.Storage.PostgresDSN); hasPassword {
		km := config.NewKeyringManager(logger.Logger)
		if !km.IsAvailable() {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: OS keychain unavailable, the PostgreSQL password is not saved; set POSTGRES_DSN\n")
		} else if err := km.SavePostgresDSN(cfg.Storage.PostgresDSN); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh, "store DSN")
		} else {
			fmt.Fprintf(out, "Stored PostgreSQL DSN in the OS keychain\n")
		}
	}

	if err := cfg.Save(path); err != nil {
		return errors.FileSystemErrorf(err, "write config").WithContext("path", path)
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

func runConfigDSN(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager(logger.Logger)
	out := cmd.OutOrStdout()

	if configDSNDelete {
		if len(args) > 0 {
			return errors.ValidationErrorf("--delete takes no DSN")
		}
		if err := km.DeletePostgresDSN(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh, "delete DSN")
		}
		fmt.Fprintln(out, "Removed PostgreSQL DSN from the OS keychain")
		return nil
	}

	dsn := cfg.Storage.PostgresDSN
	if len(args) == 1 {
		dsn = args[0]
	}
	if result := config.ValidatePostgresDSN(dsn); result.HasErrors() {
		return errors.ValidationErrorf("%s", result.Error())
	}

	if !km.IsAvailable() {
		return errors.ConfigErrorf("OS keychain unavailable, set POSTGRES_DSN instead")
	}
	if err := km.SavePostgresDSN(dsn); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh, "store DSN")
	}
	fmt.Fprintf(out, "Stored %s in the OS keychain\n", maskDSN(dsn))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	result := cfg.Validate(config.ValidationContextAll)
	out := cmd.OutOrStdout()

	for _, warn := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warn)
	}
	if result.HasErrors() {
		return errors.ConfigErrorf("%s", result.Error())
	}
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}
