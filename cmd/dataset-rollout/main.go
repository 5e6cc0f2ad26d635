package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dataset-curator/internal/dataset"
	"github.com/fpang/dataset-curator/internal/llm"
	"github.com/fpang/dataset-curator/internal/logging"
	"github.com/fpang/dataset-curator/internal/pool"
)

// CLI flags
var (
	configFlag   string
	outputFlag   string
	modelFlag    string
	maxTurnsFlag int
	workersFlag  int
	chunkFlag    int
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "dataset-rollout",
	Short: "Generate multi-turn reasoning rollouts for dataset records",
	Long: `Dataset Rollout runs every record's conversation through the model on a
dynamic task pool: each turn may schedule a follow-up turn until the model
commits to a final answer or the turn limit is reached. Only the last turn
per record is kept, written as new metafiles under the output directory with
the rollout stored in the record metadata.

Requires the GEMINI_API_KEY environment variable.

Examples:
  dataset-rollout --config dataset_config.yaml --output rollouts/
  dataset-rollout -c config.yaml -o rollouts/ --max-turns 5 -w 8`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Dataset config YAML (required)")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Directory for the rollout metafiles (required)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", llm.ModelName(), "Model to use")
	rootCmd.Flags().IntVar(&maxTurnsFlag, "max-turns", 3, "Maximum reasoning turns per record")
	rootCmd.Flags().IntVarP(&workersFlag, "workers", "w", 4, "Concurrent model calls")
	rootCmd.Flags().IntVar(&chunkFlag, "chunk-size", 1000, "Records per output metafile")
	rootCmd.MarkFlagRequired("config")
	rootCmd.MarkFlagRequired("output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// rolloutState is the task payload: the conversation accumulated so far.
type rolloutState struct {
	Conversation string `json:"conversation"`
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

	itemsByID := make(map[string]dataset.Item, len(items))
	initial := make([]pool.Task[rolloutState], 0, len(items))
	for i, item := range items {
		id := fmt.Sprintf("%s/%d", item.Dataset, i)
		itemsByID[id] = item
		initial = append(initial, pool.Task[rolloutState]{
			TaskID: uuid.NewString(),
			ItemID: id,
			Turn:   1,
			Payload: rolloutState{
				Conversation: conversationText(item.Record),
			},
		})
	}

	var exec pool.Dynamic[rolloutState, llm.RolloutStep]
	results := exec.Run(initial, workersFlag, func(worker int, task pool.Task[rolloutState]) (pool.TaskResult[rolloutState, llm.RolloutStep], error) {
		step, err := client.Rollout(ctx, task.Payload.Conversation)
		if err != nil {
			return pool.TaskResult[rolloutState, llm.RolloutStep]{}, err
		}
		result := pool.TaskResult[rolloutState, llm.RolloutStep]{
			TaskID: task.TaskID,
			ItemID: task.ItemID,
			Turn:   task.Turn,
			Result: &step,
		}
		if !step.Final && task.Turn < maxTurnsFlag {
			result.NextTasks = []pool.Task[rolloutState]{{
				TaskID: uuid.NewString(),
				ItemID: task.ItemID,
				Turn:   task.Turn + 1,
				Payload: rolloutState{
					Conversation: task.Payload.Conversation + "\nassistant (turn " + fmt.Sprint(task.Turn) + "): " + step.Reasoning,
				},
			}}
		}
		return result, nil
	})

	final := pool.ReduceHighestTurn(results)
	records := make([]dataset.Record, 0, len(final))
	for _, res := range final {
		item, ok := itemsByID[res.ItemID]
		if !ok || res.Result == nil {
			continue
		}
		rec := item.Record.Clone()
		meta := rec.Metadata()
		meta["rollout_answer"] = res.Result.Answer
		meta["rollout_reasoning"] = res.Result.Reasoning
		meta["rollout_turns"] = res.Turn
		records = append(records, rec)
	}
	if err := dataset.SaveMetafiles(records, outputFlag, chunkFlag); err != nil {
		log.Fatal().Err(err).Msg("failed to save rollout metafiles")
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("🧠 Dataset Rollout Complete")
	fmt.Println("============================================")
	fmt.Printf("Records:      %d\n", len(items))
	fmt.Printf("Turns run:    %d\n", len(results))
	fmt.Printf("Rollouts:     %d\n", len(records))
	fmt.Printf("Model:        %s\n", client.Model())
	fmt.Printf("Output:       %s\n", outputFlag)
}

// conversationText flattens a record's turns into the rollout seed.
func conversationText(rec dataset.Record) string {
	var b strings.Builder
	for _, m := range rec.Messages() {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
