package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/dataset-curator/internal/dedupe"
)

// MergeOptions configures one merge of source dataset configs into a
// destination root.
type MergeOptions struct {
	SrcConfigs []string
	DestConfig string
	CopyMedia  bool
	Workers    int
	ChunkSize  int
}

// MergeSummary reports what a merge produced.
type MergeSummary struct {
	Datasets   int
	Samples    int
	MediaFiles int // copied, zero unless CopyMedia
}

// Merge imports every dataset of every source config into the destination
// config's directory. Each imported dataset gets a uuid-suffixed metafile
// subdirectory so repeated merges of the same source never collide. With
// CopyMedia the referenced media is deduplicated, copied under the new
// subdirectory, and the metafile references are rewritten to the copies;
// otherwise the metafiles keep pointing at the original media.
func Merge(opts MergeOptions) (*MergeSummary, error) {
	if opts.ChunkSize < 1 {
		opts.ChunkSize = 1000
	}
	destPath, err := filepath.Abs(opts.DestConfig)
	if err != nil {
		return nil, err
	}
	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dest dir: %w", err)
	}

	dest, err := loadOrInitConfig(destPath, destDir)
	if err != nil {
		return nil, err
	}

	summary := &MergeSummary{}
	for _, srcPath := range opts.SrcConfigs {
		src, err := LoadConfig(srcPath)
		if err != nil {
			return nil, err
		}
		// Stable import order regardless of map iteration.
		names := make([]string, 0, len(src.Datasets))
		for name := range src.Datasets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			copied, samples, err := mergeDataset(dest, destDir, name, src.Datasets[name], opts)
			if err != nil {
				return nil, err
			}
			summary.Datasets++
			summary.Samples += samples
			summary.MediaFiles += copied
		}
	}

	total := 0
	for _, entry := range dest.Datasets {
		total += entry.SampleNums
	}
	dest.TotalSampleNums = total
	if err := dest.Save(destPath); err != nil {
		return nil, err
	}
	log.Info().
		Int("datasets", summary.Datasets).
		Int("samples", summary.Samples).
		Int("media_copied", summary.MediaFiles).
		Str("dest", destPath).
		Msg("dataset merge complete")
	return summary, nil
}

func loadOrInitConfig(path, dataDir string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &Config{DataDir: dataDir, Datasets: make(map[string]*Entry)}, nil
		}
		return nil, err
	}
	return LoadConfig(path)
}

// mergeDataset imports one source dataset and returns the copied media count
// and sample count.
func mergeDataset(dest *Config, destDir, name string, entry *Entry, opts MergeOptions) (int, int, error) {
	suffix := uuid.NewString()[:8]
	subdir := filepath.Join(destDir, fmt.Sprintf("%s_%s", name, suffix))

	items, err := CollectItems(&Config{Datasets: map[string]*Entry{name: entry}})
	if err != nil {
		return 0, 0, err
	}

	copied := 0
	if opts.CopyMedia {
		records := CollectFileRecords(items, opts.Workers)
		dedup, err := dedupe.New(dedupe.ByHash, opts.Workers)
		if err != nil {
			return 0, 0, err
		}
		res, err := dedup.Deduplicate(records)
		if err != nil {
			return 0, 0, err
		}

		// Place every unique file under the new subdirectory and point the
		// path mapping at the absolute copies.
		mapping := make(map[string]string, len(res.PathMapping))
		destByRel := make(map[string]string, len(res.Unique))
		for _, u := range res.Unique {
			target := filepath.Join(subdir, "MediaFiles", u.MediaType, fmt.Sprintf("%d%s", u.Index, u.Suffix))
			destByRel[u.RelPath()] = target
			if err := copyFile(u.SrcPath, target); err != nil {
				log.Warn().Err(err).Str("src", u.SrcPath).Msg("skipping uncopyable media file")
				continue
			}
			copied++
		}
		for src, rel := range res.PathMapping {
			if target, ok := destByRel[rel]; ok {
				mapping[src] = target
			}
		}
		items = RewritePaths(items, mapping, opts.Workers)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Metafile != items[j].Metafile {
			return items[i].Metafile < items[j].Metafile
		}
		return items[i].Line < items[j].Line
	})
	recs := make([]Record, len(items))
	for i, it := range items {
		recs[i] = it.Record
	}
	if err := SaveMetafiles(recs, subdir, opts.ChunkSize); err != nil {
		return 0, 0, err
	}

	newName := name
	if _, taken := dest.Datasets[newName]; taken {
		newName = fmt.Sprintf("%s_%s", name, suffix)
		log.Warn().Str("dataset", name).Str("renamed", newName).Msg("dataset name taken in destination")
	}
	dest.Datasets[newName] = &Entry{MetaFiles: subdir, SampleNums: len(items)}
	return copied, len(items), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
