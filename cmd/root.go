package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/olusolaa/infra-deployer/internal/app"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "infra-deployer",
	Short: "Idempotently provisions the project's AWS foundation.",
	Long: `infra-deployer converges a fixed set of AWS resources (network,
compute, database, storage) toward the configured desired state. Every
resource is looked up before it is created, so re-running against a
partially or fully provisioned account is safe.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.Bootstrap(cmd.Context(), viper.GetViper())
		if err != nil {
			printUserFacing(err)
			return err
		}
		if err := application.RunProvision(cmd.Context()); err != nil {
			printUserFacing(err)
			return err
		}
		return nil
	},
}

func printUserFacing(err error) {
	userMsg, suggestion, _ := apperrors.GetUserFacingMessage(err)
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", userMsg)
	if suggestion != "" {
		fmt.Fprintf(os.Stderr, "Suggestion: %s\n", suggestion)
	}
}

func Execute(ctx context.Context) {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default is config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override log format (text, json)")

	viper.BindPFlag("settings.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("settings.log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	viper.SetEnvPrefix("INFRA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func initializeConfig() error {
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv("INFRA_CONFIG") != "":
		viper.SetConfigFile(os.Getenv("INFRA_CONFIG"))
	default:
		viper.AddConfigPath(".")
		viper.AddConfigPath("config")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Fprintln(os.Stderr, "Config file not found, using defaults and environment variables.")
			return nil
		}
		return apperrors.Wrap(err, apperrors.CodeConfigReadError, "failed to read config file")
	}
	return nil
}
