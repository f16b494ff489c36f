package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"marketwire/internal/config"
)

var processCmd = &cobra.Command{
	Use:   "process <url>",
	Short: "Process a single article URL and print the result",
	Long: `Run the full pipeline for one article URL: fetch the page, classify it,
score it, and print the resulting article as JSON. The article is stored
unless --no-store is given.

Example:
  marketwire process https://www.idnfinancials.com/news/some-article`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noStore, _ := cmd.Flags().GetBool("no-store")
		timestamp, _ := cmd.Flags().GetString("timestamp")
		return runProcess(cmd, args[0], timestamp, noStore)
	},
}

func init() {
	processCmd.Flags().String("timestamp", "", "publication timestamp (YYYY-MM-DD HH:MM:SS, default now)")
	processCmd.Flags().Bool("no-store", false, "print the article without storing it")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, url, timestamp string, noStore bool) error {
	ctx := cmd.Context()

	ts := time.Now().UTC()
	if timestamp != "" {
		parsed, err := time.Parse("2006-01-02 15:04:05", timestamp)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", timestamp, err)
		}
		ts = parsed
	}

	a, err := buildApp(ctx, config.Get())
	if err != nil {
		return err
	}
	defer a.Close()

	article, err := a.controller.Process(ctx, url, ts)
	if err != nil {
		return err
	}

	if !noStore {
		if err := a.store.Insert(article); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(article)
}
