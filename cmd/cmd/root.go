package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"marketwire/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "marketwire",
	Short: "Marketwire turns stock news URLs into classified, scored articles.",
	Long: `Marketwire fetches stock market news articles, classifies them with an
LLM (title, summary, tags, tickers, scoring dimensions), computes a
deterministic relevance score, and stores the results.

Run 'marketwire serve' to expose the pipeline as an HTTP API, or
'marketwire process <url>' to process a single article from the shell.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.marketwire.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
}
