package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dataset-curator/internal/dedupe"
	"github.com/fpang/dataset-curator/internal/export"
	"github.com/fpang/dataset-curator/internal/logging"
)

// CLI flags
var (
	configFlag   string
	outputFlag   string
	nameFlag     string
	policyFlag   string
	workersFlag  int
	volumeGBFlag float64
	chunkFlag    int
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "dataset-pack",
	Short: "Pack a multimodal dataset into deduplicated zip volumes",
	Long: `Dataset Pack reads a dataset config, scans every metafile record for media
references, deduplicates identical files by content, rewrites the metafile
paths to archive-relative destinations, and writes size-bounded zip volumes.

Each volume carries the rewritten config and metafiles, so any subset of
volumes is independently extractable with dataset-unpack.

Examples:
  dataset-pack --config dataset_config.yaml --output /exports
  dataset-pack -c config.yaml -o /exports --name vqa_v2 --volume-gb 20
  dataset-pack -c config.yaml -o /exports --policy path  # skip content hashing`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Dataset config YAML to pack (required)")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", ".", "Directory for the volume zips and manifest")
	rootCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Base name for the volumes (default: config file name)")
	rootCmd.Flags().StringVar(&policyFlag, "policy", string(dedupe.ByHash), "Deduplication policy: hash or path")
	rootCmd.Flags().IntVarP(&workersFlag, "workers", "w", runtime.NumCPU(), "Concurrent workers for scanning and hashing")
	rootCmd.Flags().Float64Var(&volumeGBFlag, "volume-gb", 40, "Maximum volume size in GiB")
	rootCmd.Flags().IntVar(&chunkFlag, "chunk-size", export.DefaultChunkSize, "Records per packed metafile chunk")
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

	name := nameFlag
	if name == "" {
		base := filepath.Base(configFlag)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	summary, err := export.Run(export.Options{
		ConfigPath:  configFlag,
		OutputDir:   outputFlag,
		Name:        name,
		Policy:      dedupe.Policy(policyFlag),
		Workers:     workersFlag,
		VolumeBytes: int64(volumeGBFlag * float64(1<<30)),
		ChunkSize:   chunkFlag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("dataset pack failed")
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("📦 Dataset Pack Complete")
	fmt.Println("============================================")
	fmt.Printf("Samples:      %d\n", summary.Items)
	fmt.Printf("Media files:  %d\n", summary.MediaFiles)
	fmt.Printf("Unique files: %d (saved %d duplicates)\n", summary.UniqueFiles, summary.MediaFiles-summary.UniqueFiles)
	fmt.Printf("Manifest:     %s\n", summary.ManifestPath)
	fmt.Println("Volumes:")
	for _, v := range summary.Volumes {
		fmt.Printf("   %s\n", v)
	}
}
