package dataset

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/dataset-curator/internal/dedupe"
	"github.com/fpang/dataset-curator/internal/pool"
)

// CollectItems loads every metafile line of every dataset in the manifest.
// This is a single sequential pass; the per-item work that follows is what
// runs on the pools.
func CollectItems(cfg *Config) ([]Item, error) {
	var items []Item
	for name, entry := range cfg.Datasets {
		metafiles, err := FindMetafiles(entry.MetaFiles)
		if err != nil {
			return nil, err
		}
		for _, metafile := range metafiles {
			records, err := LoadJSONL(metafile)
			if err != nil {
				return nil, err
			}
			for i, rec := range records {
				items = append(items, Item{
					Dataset:  name,
					Metafile: metafile,
					Line:     i,
					Record:   rec,
				})
			}
		}
	}
	log.Info().Int("items", len(items)).Int("datasets", len(cfg.Datasets)).Msg("collected data items")
	return items, nil
}

// CollectFileRecords scans every item's media fields in parallel and
// returns one FileRecord per referenced file that exists on disk. Missing
// files are logged and skipped; stat failures do not abort the scan.
func CollectFileRecords(items []Item, workers int) []dedupe.FileRecord {
	var exec pool.QueueFed[Item, []dedupe.FileRecord]
	nested := exec.Run(items, workers, func(worker int, item Item) ([]dedupe.FileRecord, error) {
		var records []dedupe.FileRecord
		for _, kind := range MediaKinds {
			for _, src := range item.Record.MediaPaths(kind) {
				info, err := os.Stat(src)
				if err != nil {
					log.Warn().Str("path", src).Str("dataset", item.Dataset).Msg("media file missing, skipping")
					continue
				}
				records = append(records, dedupe.FileRecord{
					SrcPath:   src,
					MediaType: kind,
					Suffix:    filepath.Ext(src),
					Size:      info.Size(),
					Dataset:   item.Dataset,
					ItemID:    item.Record.ID(),
				})
			}
		}
		return records, nil
	})

	var flat []dedupe.FileRecord
	for _, group := range nested {
		flat = append(flat, group...)
	}
	log.Info().Int("media_files", len(flat)).Msg("collected media file records")
	return flat
}

// RewritePaths maps every item's media references through the path mapping
// produced by deduplication, in parallel. References without a mapping are
// logged and dropped from the rewritten record.
func RewritePaths(items []Item, mapping map[string]string, workers int) []Item {
	var exec pool.QueueFed[Item, Item]
	return exec.Run(items, workers, func(worker int, item Item) (Item, error) {
		rec := item.Record.Clone()
		for _, kind := range MediaKinds {
			paths := rec.MediaPaths(kind)
			if len(paths) == 0 {
				continue
			}
			rewritten := make([]string, 0, len(paths))
			for _, src := range paths {
				dest, ok := mapping[src]
				if !ok {
					log.Warn().Str("path", src).Msg("no path mapping for media reference")
					continue
				}
				rewritten = append(rewritten, dest)
			}
			rec.SetMediaPaths(kind, rewritten)
		}
		item.Record = rec
		return item, nil
	})
}
