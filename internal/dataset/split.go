package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/dataset-curator/internal/pool"
)

// SplitSummary reports what a split pass did.
type SplitSummary struct {
	Scanned int // metafiles inspected
	Split   int // metafiles that exceeded the limit
	Written int // chunk files written
}

type splitOutcome struct {
	split   bool
	written int
}

// SplitMetafiles rewrites every metafile holding more than maxSamples
// records as a series of _partNNN chunks of at most maxSamples each,
// removing the oversized original. Metafiles already within the limit are
// untouched. Files are processed in parallel with a static partition: the
// work per metafile is uniform enough that round-robin assignment keeps all
// workers busy.
func SplitMetafiles(cfg *Config, maxSamples, workers int) (*SplitSummary, error) {
	if maxSamples < 1 {
		return nil, fmt.Errorf("max samples must be positive, got %d", maxSamples)
	}

	var metafiles []string
	for _, entry := range cfg.Datasets {
		found, err := FindMetafiles(entry.MetaFiles)
		if err != nil {
			return nil, err
		}
		metafiles = append(metafiles, found...)
	}

	var exec pool.StaticPartition[string, splitOutcome]
	outcomes := exec.Run(metafiles, workers, func(worker int, path string) (splitOutcome, error) {
		return splitOne(path, maxSamples)
	})

	summary := &SplitSummary{Scanned: len(metafiles)}
	for _, o := range outcomes {
		if o.split {
			summary.Split++
			summary.Written += o.written
		}
	}
	log.Info().
		Int("scanned", summary.Scanned).
		Int("split", summary.Split).
		Int("written", summary.Written).
		Msg("metafile split complete")
	return summary, nil
}

func splitOne(path string, maxSamples int) (splitOutcome, error) {
	records, err := LoadJSONL(path)
	if err != nil {
		return splitOutcome{}, err
	}
	if len(records) <= maxSamples {
		return splitOutcome{}, nil
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))
	written := 0
	for i := 0; i*maxSamples < len(records); i++ {
		end := (i + 1) * maxSamples
		if end > len(records) {
			end = len(records)
		}
		chunk := fmt.Sprintf("%s_part%03d.jsonl", base, i)
		if err := SaveJSONL(records[i*maxSamples:end], chunk); err != nil {
			return splitOutcome{}, err
		}
		written++
	}
	if err := os.Remove(path); err != nil {
		return splitOutcome{}, fmt.Errorf("remove original %s: %w", path, err)
	}
	log.Debug().Str("metafile", filepath.Base(path)).Int("chunks", written).Msg("metafile split")
	return splitOutcome{split: true, written: written}, nil
}
