// Package export drives the dataset packing pipeline: collect metafile
// records, scan their media references, deduplicate content, rewrite paths,
// and pack everything into size-bounded zip volumes. It also implements the
// reverse import that makes an extracted archive usable in place.
package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/fpang/dataset-curator/internal/archive"
	"github.com/fpang/dataset-curator/internal/dataset"
	"github.com/fpang/dataset-curator/internal/dedupe"
)

// Defaults for the pack pipeline.
const (
	DefaultVolumeBytes = int64(40) << 30 // 40 GiB per volume
	DefaultChunkSize   = 1000            // records per metafile chunk
)

// Options configures one pack run.
type Options struct {
	ConfigPath  string
	OutputDir   string
	Name        string // base name for volumes and the manifest
	Policy      dedupe.Policy
	Workers     int
	VolumeBytes int64
	ChunkSize   int
}

// Summary reports what a pack run produced.
type Summary struct {
	Items        int
	MediaFiles   int
	UniqueFiles  int
	Volumes      []string
	ManifestPath string
}

// Run executes the full pack pipeline for opts.
func Run(opts Options) (*Summary, error) {
	start := time.Now()
	if opts.VolumeBytes <= 0 {
		opts.VolumeBytes = DefaultVolumeBytes
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	cfg, err := dataset.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	items, err := dataset.CollectItems(cfg)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("config %s yields no data items", opts.ConfigPath)
	}

	records := dataset.CollectFileRecords(items, opts.Workers)

	dedup, err := dedupe.New(opts.Policy, opts.Workers)
	if err != nil {
		return nil, err
	}
	res, err := dedup.Deduplicate(records)
	if err != nil {
		return nil, err
	}

	rewritten := dataset.RewritePaths(items, res.PathMapping, opts.Workers)

	payload, err := buildPayload(opts, cfg, rewritten)
	if err != nil {
		return nil, err
	}

	entries := make([]archive.Entry, 0, len(res.Unique))
	for _, u := range res.Unique {
		entries = append(entries, archive.Entry{
			SrcPath:     u.SrcPath,
			ArchivePath: u.RelPath(),
			Size:        u.Size,
			Hash:        u.Hash,
			Dataset:     u.Dataset,
		})
	}
	volumes := archive.PackVolumes(entries, payload.Overhead(), opts.VolumeBytes)

	summary := &Summary{
		Items:       len(items),
		MediaFiles:  len(records),
		UniqueFiles: len(res.Unique),
	}
	base := filepath.Join(opts.OutputDir, opts.Name)
	for i, vol := range volumes {
		zipPath := archive.VolumePath(base, i, len(volumes))
		if err := archive.WriteVolume(zipPath, payload, vol); err != nil {
			return nil, err
		}
		summary.Volumes = append(summary.Volumes, zipPath)
	}

	summary.ManifestPath = base + "_manifest.yaml"
	manifest := archive.Manifest{
		Name:        opts.Name,
		TotalSample: len(items),
		UniqueFiles: len(res.Unique),
		Volumes:     len(volumes),
	}
	if err := archive.WriteManifest(summary.ManifestPath, manifest); err != nil {
		return nil, err
	}

	log.Info().
		Int("items", summary.Items).
		Int("media_files", summary.MediaFiles).
		Int("unique_files", summary.UniqueFiles).
		Int("volumes", len(summary.Volumes)).
		Dur("elapsed", time.Since(start)).
		Msg("dataset pack complete")
	return summary, nil
}

// buildPayload assembles the shared payload every volume carries: the
// rewritten config and the rewritten metafile bodies, chunked per dataset.
func buildPayload(opts Options, cfg *dataset.Config, items []dataset.Item) (archive.SharedPayload, error) {
	byDataset := make(map[string][]dataset.Item)
	for _, it := range items {
		byDataset[it.Dataset] = append(byDataset[it.Dataset], it)
	}

	payload := archive.SharedPayload{
		ConfigName: filepath.Base(opts.ConfigPath),
		Metafiles:  make(map[string][]byte),
	}
	outCfg := &dataset.Config{
		DataDir:         ".",
		Datasets:        make(map[string]*dataset.Entry, len(cfg.Datasets)),
		TotalSampleNums: len(items),
	}
	for name := range cfg.Datasets {
		group := byDataset[name]
		// Stable body order regardless of worker completion order.
		sort.Slice(group, func(i, j int) bool {
			if group[i].Metafile != group[j].Metafile {
				return group[i].Metafile < group[j].Metafile
			}
			return group[i].Line < group[j].Line
		})
		recs := make([]dataset.Record, len(group))
		for i, it := range group {
			recs[i] = it.Record
		}
		for i := 0; i*opts.ChunkSize < len(recs) || (i == 0 && len(recs) == 0); i++ {
			end := (i + 1) * opts.ChunkSize
			if end > len(recs) {
				end = len(recs)
			}
			body, err := dataset.MarshalJSONL(recs[i*opts.ChunkSize : end])
			if err != nil {
				return archive.SharedPayload{}, err
			}
			payload.Metafiles[fmt.Sprintf("%s/meta_%06d.jsonl", name, i)] = body
		}
		outCfg.Datasets[name] = &dataset.Entry{
			MetaFiles:  name,
			SampleNums: len(recs),
		}
	}

	data, err := yaml.Marshal(outCfg)
	if err != nil {
		return archive.SharedPayload{}, fmt.Errorf("marshal packed config: %w", err)
	}
	payload.ConfigYAML = data
	return payload, nil
}
