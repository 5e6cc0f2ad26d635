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
	srcFlags      []string
	destFlag      string
	copyMediaFlag bool
	workersFlag   int
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "dataset-merge",
	Short: "Merge source dataset configs into one destination root",
	Long: `Dataset Merge imports every dataset of the given source configs into the
directory of a destination config. Metafiles are copied under uuid-suffixed
subdirectories so repeated merges never collide, and the destination config
is created or updated with the imported datasets.

With --copy-media the referenced media files are deduplicated by content,
copied under the destination, and the metafile references rewritten to the
copies. Without it the metafiles keep pointing at the original media.

Examples:
  dataset-merge --src a/config.yaml --src b/config.yaml --dest merged/config.yaml
  dataset-merge -s a/config.yaml -d merged/config.yaml --copy-media`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringArrayVarP(&srcFlags, "src", "s", nil, "Source dataset config YAML (repeatable, required)")
	rootCmd.Flags().StringVarP(&destFlag, "dest", "d", "", "Destination config YAML (required)")
	rootCmd.Flags().BoolVar(&copyMediaFlag, "copy-media", false, "Copy deduplicated media under the destination")
	rootCmd.Flags().IntVarP(&workersFlag, "workers", "w", runtime.NumCPU(), "Concurrent workers for hashing and rewriting")
	rootCmd.MarkFlagRequired("src")
	rootCmd.MarkFlagRequired("dest")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	summary, err := dataset.Merge(dataset.MergeOptions{
		SrcConfigs: srcFlags,
		DestConfig: destFlag,
		CopyMedia:  copyMediaFlag,
		Workers:    workersFlag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("dataset merge failed")
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("🔀 Dataset Merge Complete")
	fmt.Println("============================================")
	fmt.Printf("Datasets:     %d\n", summary.Datasets)
	fmt.Printf("Samples:      %d\n", summary.Samples)
	if copyMediaFlag {
		fmt.Printf("Media copied: %d\n", summary.MediaFiles)
	}
	fmt.Printf("Destination:  %s\n", destFlag)
}
