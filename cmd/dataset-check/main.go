package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dataset-curator/internal/check"
	"github.com/fpang/dataset-curator/internal/dataset"
	"github.com/fpang/dataset-curator/internal/logging"
)

// CLI flags
var (
	configFlag  string
	reportFlag  string
	workersFlag int
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "dataset-check",
	Short: "Validate media references across a dataset",
	Long: `Dataset Check walks every record of every dataset in the config and
verifies that referenced media files exist, that images decode, and that the
<image>/<video>/<audio> placeholders in the user turns match the media list
lengths.

The exit code is non-zero when any item fails, so the command slots into CI.

Examples:
  dataset-check --config dataset_config.yaml
  dataset-check -c config.yaml --report failures.jsonl -w 16`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Dataset config YAML (required)")
	rootCmd.Flags().StringVarP(&reportFlag, "report", "r", "", "Write failed item reports to this JSONL file")
	rootCmd.Flags().IntVarP(&workersFlag, "workers", "w", runtime.NumCPU(), "Concurrent workers")
	rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	cfg, err := dataset.LoadConfig(configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	items, err := dataset.CollectItems(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to collect items")
	}

	summary := check.Run(items, workersFlag)

	if reportFlag != "" && len(summary.Reports) > 0 {
		if err := writeReport(reportFlag, summary.Reports); err != nil {
			log.Fatal().Err(err).Msg("failed to write report")
		}
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("🔍 Dataset Check Complete")
	fmt.Println("============================================")
	fmt.Printf("Items checked: %d\n", summary.Checked)
	fmt.Printf("Items failed:  %d\n", summary.Failed)
	fmt.Printf("Missing:       %d\n", summary.Missing)
	fmt.Printf("Corrupted:     %d\n", summary.Corrupted)
	fmt.Printf("Mismatched:    %d\n", summary.Mismatched)
	if reportFlag != "" && len(summary.Reports) > 0 {
		fmt.Printf("Report:        %s\n", reportFlag)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// writeReport saves one JSON line per failed item.
func writeReport(path string, reports []check.ItemReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	}
	return w.Flush()
}
