package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	warmJSON  bool
	warmQuiet bool
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Chunk and embed the knowledge base, then print index stats",
	RunE:  runWarm,
}

func init() {
	warmCmd.Flags().BoolVar(&warmJSON, "json", false, "print stats as JSON")
	warmCmd.Flags().BoolVar(&warmQuiet, "no-progress", false, "disable the progress bar")
}

func runWarm(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if !warmQuiet {
		var (
			mu  sync.Mutex
			bar *progressbar.ProgressBar
		)
		a.cache.SetProgress(func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("embedding"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(40),
					progressbar.OptionThrottle(100*time.Millisecond),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("chunks"),
				)
			}
			_ = bar.Set(done)
			if done >= total {
				_ = bar.Finish()
				fmt.Fprintln(os.Stderr)
			}
		})
	}

	stats, err := a.retrieval.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	if warmJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model:      %s\n", stats.Model)
	fmt.Fprintf(out, "Documents:  %d\n", stats.Documents)
	fmt.Fprintf(out, "Chunks:     %d\n", stats.Chunks)
	fmt.Fprintf(out, "Dimensions: %d\n", stats.Dimensions)
	return nil
}
