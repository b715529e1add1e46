package main

import (
	"os"

	"RiseAndShine/internal/config"
	"github.com/spf13/cobra"
)

var (
	apiURL   string
	apiToken string
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:           "risectl",
	Short:         "Operate a RiseAndShine daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnv()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (default http://localhost:$APP_PORT/api/v1)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "bearer token (default $RISECTL_TOKEN, or minted from $JWT_ACCESS_TOKEN_SECRET)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(generateCmd, retryAudioCmd, fireCmd, stopCmd, watchCmd, configCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
