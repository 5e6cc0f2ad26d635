package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dataset-curator/internal/dataset"
	"github.com/fpang/dataset-curator/internal/logging"
)

// CLI flags
var (
	configFlag     string
	maxSamplesFlag int
	workersFlag    int
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "dataset-split",
	Short: "Split oversized metafiles into fixed-size chunks",
	Long: `Dataset Split rewrites every metafile holding more than the sample limit
as a series of _partNNN chunks, removing the oversized original. Metafiles
already within the limit are left untouched.

Examples:
  dataset-split --config dataset_config.yaml --max-samples 1000
  dataset-split -c config.yaml -m 500 -w 8`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Dataset config YAML (required)")
	rootCmd.Flags().IntVarP(&maxSamplesFlag, "max-samples", "m", 1000, "Maximum records per metafile")
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
	summary, err := dataset.SplitMetafiles(cfg, maxSamplesFlag, workersFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("dataset split failed")
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("✂️  Dataset Split Complete")
	fmt.Println("============================================")
	fmt.Printf("Metafiles scanned: %d\n", summary.Scanned)
	fmt.Printf("Metafiles split:   %d\n", summary.Split)
	fmt.Printf("Chunks written:    %d\n", summary.Written)
}
