// Package check validates dataset content: media references must exist and
// be readable, and their counts must match the placeholders in the
// conversation text.
package check

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fpang/dataset-curator/internal/dataset"
	"github.com/fpang/dataset-curator/internal/pool"
)

// placeholderFor maps a media kind to the marker expected in user messages.
var placeholderFor = map[string]string{
	"images": "<image>",
	"videos": "<video>",
	"audios": "<audio>",
}

// metaFormats are the image formats imagemeta can parse for embedded
// metadata. Formats it cannot settle go through a registered header decode.
var metaFormats = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".heic": true,
	".heif": true,
	".tif":  true,
	".tiff": true,
}

// heifFormats have no stdlib pixel decoder, so imagemeta is the only check.
var heifFormats = map[string]bool{
	".heic": true,
	".heif": true,
}

// ItemReport lists the problems found in one record.
type ItemReport struct {
	ItemID     string   `json:"item_id"`
	Dataset    string   `json:"dataset"`
	Missing    []string `json:"missing,omitempty"`    // referenced files absent from disk
	Corrupted  []string `json:"corrupted,omitempty"`  // files that exist but fail validation
	Mismatched []string `json:"mismatched,omitempty"` // media kinds whose count differs from placeholders
}

// OK reports whether the item passed every check.
func (r ItemReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Corrupted) == 0 && len(r.Mismatched) == 0
}

// Summary aggregates reports across a whole run.
type Summary struct {
	Checked    int
	Failed     int
	Missing    int
	Corrupted  int
	Mismatched int
	Reports    []ItemReport // only items that failed
}

// CheckItem validates one record's media references.
func CheckItem(item dataset.Item) ItemReport {
	report := ItemReport{ItemID: item.Record.ID(), Dataset: item.Dataset}

	// Placeholder counts come from user turns only; assistant text may
	// legitimately mention the markers.
	counts := make(map[string]int)
	for _, msg := range item.Record.Messages() {
		if msg.Role != "user" {
			continue
		}
		for kind, marker := range placeholderFor {
			counts[kind] += strings.Count(msg.Content, marker)
		}
	}

	for _, kind := range dataset.MediaKinds {
		files := item.Record.MediaPaths(kind)
		if len(files) != counts[kind] && (len(files) > 0 || counts[kind] > 0) {
			report.Mismatched = append(report.Mismatched,
				fmt.Sprintf("%s: %d files vs %d placeholders", kind, len(files), counts[kind]))
		}

		for _, path := range files {
			info, err := os.Stat(path)
			if err != nil {
				report.Missing = append(report.Missing, path)
				continue
			}
			if info.Size() == 0 {
				report.Corrupted = append(report.Corrupted, path)
				continue
			}
			if kind == "images" {
				if err := ValidateImage(path); err != nil {
					log.Debug().Err(err).Str("path", path).Msg("image validation failed")
					report.Corrupted = append(report.Corrupted, path)
				}
			}
		}
	}
	return report
}

// ValidateImage proves an image file is structurally readable without fully
// decoding pixels: EXIF-capable formats go through imagemeta, everything
// else through a registered header decoder.
func ValidateImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if metaFormats[ext] {
		if _, err := imagemeta.Decode(f); err == nil {
			return nil
		} else if heifFormats[ext] {
			return fmt.Errorf("decode metadata of %s: %w", path, err)
		}
		// Images without embedded metadata are still valid; fall back
		// to a pixel header decode.
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind %s: %w", path, err)
		}
	}
	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("decode header of %s: %w", path, err)
	}
	return nil
}

// Run checks every item in parallel and aggregates the failures.
func Run(items []dataset.Item, workers int) Summary {
	var exec pool.QueueFed[dataset.Item, ItemReport]
	reports := exec.Run(items, workers, func(worker int, item dataset.Item) (ItemReport, error) {
		return CheckItem(item), nil
	})

	summary := Summary{Checked: len(reports)}
	for _, r := range reports {
		if r.OK() {
			continue
		}
		summary.Failed++
		summary.Missing += len(r.Missing)
		summary.Corrupted += len(r.Corrupted)
		summary.Mismatched += len(r.Mismatched)
		summary.Reports = append(summary.Reports, r)
	}
	log.Info().
		Int("checked", summary.Checked).
		Int("failed", summary.Failed).
		Int("missing", summary.Missing).
		Int("corrupted", summary.Corrupted).
		Int("mismatched", summary.Mismatched).
		Msg("content check complete")
	return summary
}
