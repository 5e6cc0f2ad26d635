package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dataset-curator/internal/export"
	"github.com/fpang/dataset-curator/internal/logging"
)

// CLI flags
var (
	destFlag    string
	workersFlag int
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "dataset-unpack [archives...]",
	Short: "Extract packed dataset volumes and make them usable in place",
	Long: `Dataset Unpack extracts one or more volume zips produced by dataset-pack
into a destination directory, rewrites the archive-relative media paths
inside the metafiles to absolute paths, and updates the extracted config so
the dataset can be loaded directly from the destination.

Volumes of one export may be passed in any order; the shared metafile
payload is identical across them.

Examples:
  dataset-unpack --dest /data/vqa export.zip
  dataset-unpack -d /data/vqa export_part1.zip export_part2.zip export_part3.zip`,
	Args: cobra.MinimumNArgs(1),
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&destFlag, "dest", "d", "", "Destination directory (required)")
	rootCmd.Flags().IntVarP(&workersFlag, "workers", "w", runtime.NumCPU(), "Concurrent workers for path rewriting")
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

	summary, err := export.Unpack(export.UnpackOptions{
		Archives: args,
		DestDir:  destFlag,
		Workers:  workersFlag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("dataset unpack failed")
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("📂 Dataset Unpack Complete")
	fmt.Println("============================================")
	fmt.Printf("Archives:  %d\n", len(args))
	fmt.Printf("Files:     %d\n", summary.Files)
	fmt.Printf("Metafiles: %d\n", summary.Metafiles)
	fmt.Printf("Config:    %s\n", summary.ConfigPath)
}
