package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/david/tender-matcher/internal/app"
	"github.com/david/tender-matcher/internal/logger"
)

const cliName = "tenderctl"

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           cliName,
		Short:         "tenderctl extracts public works tenders and matches them against contractors",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is tenderctl.yaml in current directory)")
	rootCmd.PersistentFlags().String("policy", "", "policy YAML file (default is the embedded policy)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("policy", rootCmd.PersistentFlags().Lookup("policy"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetEnvPrefix("TENDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.BindEnv("policy", "TENDER_POLICY", "POLICY_FILE")
	viper.BindEnv("database-url", "TENDER_DATABASE_URL", "DATABASE_URL")
}

func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(cliName)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless given explicitly.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			cobra.CheckErr(fmt.Errorf("reading config: %w", err))
		}
	}
}

func newLogger() (*zap.Logger, error) {
	lg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}
	return lg, nil
}

func buildComponents(lg *zap.Logger) (*app.Components, error) {
	return app.Build(viper.GetString("policy"), lg)
}
