package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dataset-curator/internal/dataset"
	"github.com/fpang/dataset-curator/internal/llm"
	"github.com/fpang/dataset-curator/internal/logging"
	"github.com/fpang/dataset-curator/internal/pool"
)

// CLI flags
var (
	configFlag     string
	categoriesFlag []string
	modelFlag      string
	workersFlag    int
)

// defaultCategories cover the common task families of multimodal training
// sets; override with --categories for domain-specific taxonomies.
var defaultCategories = []string{
	"captioning", "visual_qa", "ocr", "reasoning", "grounding", "other",
}

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "dataset-label",
	Short: "Label dataset records with model-assigned categories",
	Long: `Dataset Label sends every record's conversation to the model and stores
the assigned category under metadata.category_from_model, rewriting the
metafiles in place. Records the model cannot label fall back to "other".

Requires the GEMINI_API_KEY environment variable.

Examples:
  dataset-label --config dataset_config.yaml
  dataset-label -c config.yaml --categories captioning,visual_qa,ocr,other
  dataset-label -c config.yaml --model gemini-2.5-pro -w 8`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Dataset config YAML (required)")
	rootCmd.Flags().StringSliceVar(&categoriesFlag, "categories", defaultCategories, "Allowed category labels")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", llm.ModelName(), "Model to use")
	rootCmd.Flags().IntVarP(&workersFlag, "workers", "w", 4, "Concurrent model calls")
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
	ctx := context.Background()

	cfg, err := dataset.LoadConfig(configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	items, err := dataset.CollectItems(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to collect items")
	}
	client, err := llm.NewClient(ctx, modelFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create model client")
	}

	var exec pool.QueueFed[dataset.Item, labelOutcome]
	outcomes := exec.Run(items, workersFlag, func(worker int, item dataset.Item) (labelOutcome, error) {
		category, err := client.Classify(ctx, conversationText(item.Record), categoriesFlag)
		if err != nil {
			log.Warn().Err(err).Str("item", item.Record.ID()).Msg("classification fell back")
		}
		item.Record.Metadata()["category_from_model"] = category
		return labelOutcome{item: item, fallback: err != nil}, nil
	})

	var fallbacks int
	labeled := make([]dataset.Item, 0, len(outcomes))
	for _, o := range outcomes {
		if o.fallback {
			fallbacks++
		}
		labeled = append(labeled, o.item)
	}

	if err := saveByMetafile(labeled); err != nil {
		log.Fatal().Err(err).Msg("failed to save labeled metafiles")
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("🏷️  Dataset Label Complete")
	fmt.Println("============================================")
	fmt.Printf("Records labeled: %d\n", len(labeled))
	fmt.Printf("Fallbacks:       %d\n", fallbacks)
	fmt.Printf("Model:           %s\n", client.Model())
}

type labelOutcome struct {
	item     dataset.Item
	fallback bool
}

// conversationText flattens a record's turns into the prompt body.
func conversationText(rec dataset.Record) string {
	var b strings.Builder
	for _, m := range rec.Messages() {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

// saveByMetafile writes labeled items back to their source metafiles in
// original line order.
func saveByMetafile(items []dataset.Item) error {
	byFile := make(map[string][]dataset.Item)
	for _, it := range items {
		byFile[it.Metafile] = append(byFile[it.Metafile], it)
	}
	for path, group := range byFile {
		sort.Slice(group, func(i, j int) bool { return group[i].Line < group[j].Line })
		recs := make([]dataset.Record, len(group))
		for i, it := range group {
			recs[i] = it.Record
		}
		if err := dataset.SaveJSONL(recs, path); err != nil {
			return err
		}
	}
	return nil
}
