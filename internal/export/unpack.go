package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/dataset-curator/internal/archive"
	"github.com/fpang/dataset-curator/internal/dataset"
	"github.com/fpang/dataset-curator/internal/pool"
)

// UnpackOptions configures one unpack run.
type UnpackOptions struct {
	Archives []string // volume zips of one export, any order
	DestDir  string
	Workers  int
}

// UnpackSummary reports what an unpack run produced.
type UnpackSummary struct {
	Files      int
	Metafiles  int
	ConfigPath string
}

// Unpack extracts every volume into DestDir, rewrites the archive-relative
// media references inside the metafiles to absolute paths under DestDir, and
// updates the extracted config so the dataset is usable in place.
func Unpack(opts UnpackOptions) (*UnpackSummary, error) {
	if len(opts.Archives) == 0 {
		return nil, fmt.Errorf("no archives to unpack")
	}
	if err := os.MkdirAll(opts.DestDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dest dir: %w", err)
	}

	summary := &UnpackSummary{}
	for _, zipPath := range opts.Archives {
		n, err := archive.ExtractArchive(zipPath, opts.DestDir)
		if err != nil {
			return nil, err
		}
		summary.Files += n
	}

	cfgPath, err := findConfig(opts.DestDir)
	if err != nil {
		return nil, err
	}
	summary.ConfigPath = cfgPath

	cfg, err := loadExtractedConfig(cfgPath, opts.DestDir)
	if err != nil {
		return nil, err
	}

	// Every metafile across all datasets, rewritten in parallel.
	var metafiles []string
	for _, entry := range cfg.Datasets {
		found, err := dataset.FindMetafiles(entry.MetaFiles)
		if err != nil {
			return nil, err
		}
		metafiles = append(metafiles, found...)
	}
	var exec pool.QueueFed[string, int]
	exec.Run(metafiles, opts.Workers, func(worker int, path string) (int, error) {
		return rewriteMetafile(path, opts.DestDir)
	})
	summary.Metafiles = len(metafiles)

	if err := cfg.Save(cfgPath); err != nil {
		return nil, err
	}
	log.Info().
		Int("archives", len(opts.Archives)).
		Int("files", summary.Files).
		Int("metafiles", summary.Metafiles).
		Str("dest", opts.DestDir).
		Msg("dataset unpack complete")
	return summary, nil
}

// findConfig locates the packed config YAML at the extraction root.
func findConfig(destDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(destDir, "*.yaml"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no config yaml found in %s", destDir)
	}
	if len(matches) > 1 {
		log.Warn().Strs("candidates", matches).Msg("multiple yaml files at extraction root, using first")
	}
	return matches[0], nil
}

// loadExtractedConfig reads the packed config and anchors its relative
// dataset paths under destDir. The packed config's MetaFiles entries are
// dataset names relative to the archive root.
func loadExtractedConfig(cfgPath, destDir string) (*dataset.Config, error) {
	cfg, err := dataset.LoadConfigFrom(cfgPath, destDir)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = destDir
	return cfg, nil
}

// rewriteMetafile loads one extracted metafile and makes every relative
// media reference absolute under destDir. Already absolute references are
// left alone so re-running unpack is harmless.
func rewriteMetafile(path, destDir string) (int, error) {
	records, err := dataset.LoadJSONL(path)
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		for _, kind := range dataset.MediaKinds {
			paths := rec.MediaPaths(kind)
			if len(paths) == 0 {
				continue
			}
			for i, p := range paths {
				if !filepath.IsAbs(p) {
					paths[i] = filepath.Join(destDir, p)
				}
			}
			rec.SetMediaPaths(kind, paths)
		}
	}
	if err := dataset.SaveJSONL(records, path); err != nil {
		return 0, err
	}
	return len(records), nil
}
