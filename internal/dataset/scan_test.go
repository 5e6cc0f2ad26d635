package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

// buildDataset writes a one-dataset manifest with a metafile referencing the
// given media files (which are created on disk) and returns the config.
func buildDataset(t *testing.T) (*Config, []string) {
	t.Helper()
	root := t.TempDir()
	metaDir := filepath.Join(root, "ds1", "MetaFiles")
	mediaDir := filepath.Join(root, "ds1", "media")
	for _, d := range []string{metaDir, mediaDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	img1 := filepath.Join(mediaDir, "1.jpg")
	img2 := filepath.Join(mediaDir, "2.jpg")
	vid := filepath.Join(mediaDir, "clip.mp4")
	for _, p := range []string{img1, img2, vid} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	records := []Record{
		{"id": "r1", "images": []any{img1, img2}},
		{"id": "r2", "images": []any{img1}, "videos": []any{vid}},
	}
	if err := SaveJSONL(records, filepath.Join(metaDir, "meta.jsonl")); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		Datasets: map[string]*Entry{
			"ds1": {MetaFiles: metaDir, SampleNums: 2},
		},
		TotalSampleNums: 2,
	}
	return cfg, []string{img1, img2, vid}
}

func TestCollectItems(t *testing.T) {
	cfg, _ := buildDataset(t)
	items, err := CollectItems(cfg)
	if err != nil {
		t.Fatalf("CollectItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	for _, item := range items {
		if item.Dataset != "ds1" {
			t.Errorf("item dataset = %q, want ds1", item.Dataset)
		}
	}
}

func TestCollectFileRecords(t *testing.T) {
	cfg, media := buildDataset(t)
	items, err := CollectItems(cfg)
	if err != nil {
		t.Fatal(err)
	}

	records := CollectFileRecords(items, 4)
	// r1 references 2 images, r2 references 1 image and 1 video: four
	// records before deduplication.
	if len(records) != 4 {
		t.Fatalf("got %d file records, want 4", len(records))
	}
	byPath := make(map[string]int)
	for _, rec := range records {
		byPath[rec.SrcPath]++
		if rec.Size <= 0 {
			t.Errorf("record %s has size %d", rec.SrcPath, rec.Size)
		}
	}
	if byPath[media[0]] != 2 {
		t.Errorf("shared image referenced %d times, want 2", byPath[media[0]])
	}
}

func TestCollectFileRecordsSkipsMissing(t *testing.T) {
	cfg, media := buildDataset(t)
	if err := os.Remove(media[2]); err != nil {
		t.Fatal(err)
	}
	items, err := CollectItems(cfg)
	if err != nil {
		t.Fatal(err)
	}

	records := CollectFileRecords(items, 2)
	if len(records) != 3 {
		t.Errorf("got %d file records after removing the video, want 3", len(records))
	}
}

func TestRewritePaths(t *testing.T) {
	cfg, media := buildDataset(t)
	items, err := CollectItems(cfg)
	if err != nil {
		t.Fatal(err)
	}

	mapping := map[string]string{
		media[0]: "MediaFiles/images/1.jpg",
		media[1]: "MediaFiles/images/2.jpg",
		media[2]: "MediaFiles/videos/1.mp4",
	}

	rewritten := RewritePaths(items, mapping, 3)
	if len(rewritten) != len(items) {
		t.Fatalf("got %d rewritten items, want %d", len(rewritten), len(items))
	}
	for _, item := range rewritten {
		for _, kind := range MediaKinds {
			for _, p := range item.Record.MediaPaths(kind) {
				if filepath.IsAbs(p) {
					t.Errorf("path %q not rewritten", p)
				}
			}
		}
	}

	// Originals must be untouched: rewrite works on clones.
	for _, item := range items {
		for _, p := range item.Record.MediaPaths("images") {
			if !filepath.IsAbs(p) {
				t.Errorf("original record mutated: %q", p)
			}
		}
	}
}

func TestRewritePathsDropsUnmapped(t *testing.T) {
	cfg, media := buildDataset(t)
	items, err := CollectItems(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Only one image is mapped; everything else is dropped.
	mapping := map[string]string{media[0]: "MediaFiles/images/1.jpg"}
	rewritten := RewritePaths(items, mapping, 2)

	for _, item := range rewritten {
		for _, p := range item.Record.MediaPaths("images") {
			if p != "MediaFiles/images/1.jpg" {
				t.Errorf("unexpected surviving path %q", p)
			}
		}
		if vids := item.Record.MediaPaths("videos"); len(vids) != 0 {
			t.Errorf("unmapped video survived: %v", vids)
		}
	}
}
