package dedupe

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func record(t *testing.T, dir, name, dataset, mediaType string, data []byte) FileRecord {
	t.Helper()
	path := writeFile(t, dir, name, data)
	return FileRecord{
		SrcPath:   path,
		MediaType: mediaType,
		Suffix:    filepath.Ext(name),
		Size:      int64(len(data)),
		Dataset:   dataset,
	}
}

func TestByHashDistinctContents(t *testing.T) {
	dir := t.TempDir()
	// Five files, three distinct contents. The duplicates share sizes so
	// they land in multi-member size groups and go through hashing.
	contentA := bytes.Repeat([]byte("aaaa"), 100)
	contentB := bytes.Repeat([]byte("bbbb"), 100) // same size as A, different bytes
	contentC := []byte("tiny")

	records := []FileRecord{
		record(t, dir, "1.jpg", "ds1", "images", contentA),
		record(t, dir, "2.jpg", "ds1", "images", contentA),
		record(t, dir, "3.jpg", "ds1", "images", contentB),
		record(t, dir, "4.jpg", "ds1", "images", contentC),
		record(t, dir, "5.jpg", "ds1", "images", contentA),
	}

	d, err := New(ByHash, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := d.Deduplicate(records)
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}

	if len(res.Unique) != 3 {
		t.Fatalf("got %d unique files, want 3", len(res.Unique))
	}
	if len(res.PathMapping) != 5 {
		t.Fatalf("got %d path mappings, want 5", len(res.PathMapping))
	}

	// All three copies of contentA must map to one destination.
	destA := res.PathMapping[records[0].SrcPath]
	for _, i := range []int{1, 4} {
		if got := res.PathMapping[records[i].SrcPath]; got != destA {
			t.Errorf("copy %d maps to %q, want %q", i, got, destA)
		}
	}
	// Different content must map elsewhere.
	if res.PathMapping[records[2].SrcPath] == destA {
		t.Error("different content mapped to the same destination")
	}

	if got := res.CountByType["ds1"]["images"]; got != 3 {
		t.Errorf("image count = %d, want 3", got)
	}
}

func TestByHashMappingTargetsResolveToMatchingContent(t *testing.T) {
	dir := t.TempDir()
	contentA := bytes.Repeat([]byte("xy"), 512)
	contentB := bytes.Repeat([]byte("pq"), 512)

	records := []FileRecord{
		record(t, dir, "a1.png", "ds", "images", contentA),
		record(t, dir, "b1.png", "ds", "images", contentB),
		record(t, dir, "a2.png", "ds", "images", contentA),
	}

	d, _ := New(ByHash, 2)
	res, err := d.Deduplicate(records)
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}

	// Build destination -> canonical source from the unique set, then
	// verify every record's mapping points at content-identical bytes.
	canonicalSrc := make(map[string]string)
	for _, u := range res.Unique {
		canonicalSrc[u.RelPath()] = u.SrcPath
	}
	for _, rec := range records {
		dest := res.PathMapping[rec.SrcPath]
		src, ok := canonicalSrc[dest]
		if !ok {
			t.Fatalf("mapping target %q has no unique entry", dest)
		}
		want, _ := os.ReadFile(rec.SrcPath)
		got, _ := os.ReadFile(src)
		if !bytes.Equal(want, got) {
			t.Errorf("%s mapped to %s with different content", rec.SrcPath, src)
		}
	}
}

func TestByHashSingletonSizesSkipHashing(t *testing.T) {
	dir := t.TempDir()
	records := []FileRecord{
		record(t, dir, "a.jpg", "ds", "images", []byte("a")),
		record(t, dir, "b.jpg", "ds", "images", []byte("bb")),
		record(t, dir, "c.mp4", "ds", "videos", []byte("ccc")),
	}

	d, _ := New(ByHash, 2)
	res, err := d.Deduplicate(records)
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}

	if len(res.Unique) != 3 {
		t.Fatalf("got %d unique files, want 3", len(res.Unique))
	}
	if got := res.CountByType["ds"]["images"]; got != 2 {
		t.Errorf("images = %d, want 2", got)
	}
	if got := res.CountByType["ds"]["videos"]; got != 1 {
		t.Errorf("videos = %d, want 1", got)
	}
}

func TestByHashUnreadableFileStaysUnique(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte("z"), 64)
	good := record(t, dir, "good.jpg", "ds", "images", data)
	gone := record(t, dir, "gone.jpg", "ds", "images", data)
	// Remove one file after recording it so hashing fails; equal sizes
	// force both into the hashed group.
	if err := os.Remove(gone.SrcPath); err != nil {
		t.Fatal(err)
	}

	d, _ := New(ByHash, 2)
	res, err := d.Deduplicate([]FileRecord{good, gone})
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}

	// The unreadable file is kept as its own unique entry, never dropped.
	if len(res.Unique) != 2 {
		t.Fatalf("got %d unique files, want 2", len(res.Unique))
	}
	if _, ok := res.PathMapping[gone.SrcPath]; !ok {
		t.Error("unreadable file missing from path mapping")
	}
}

func TestByHashCountersPartitionedByDataset(t *testing.T) {
	dir := t.TempDir()
	records := []FileRecord{
		record(t, dir, "x.jpg", "ds1", "images", []byte("one")),
		record(t, dir, "y.jpg", "ds2", "images", []byte("twoo")),
	}

	d, _ := New(ByHash, 1)
	res, err := d.Deduplicate(records)
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}

	// Each dataset starts its own index sequence at 1.
	for _, u := range res.Unique {
		if u.Index != 1 {
			t.Errorf("dataset %s index = %d, want 1", u.Dataset, u.Index)
		}
	}
}

func TestByPathFirstOccurrenceWins(t *testing.T) {
	records := []FileRecord{
		{SrcPath: "/data/a.jpg", MediaType: "images", Suffix: ".jpg", Size: 10, Dataset: "ds"},
		{SrcPath: "/data/b.jpg", MediaType: "images", Suffix: ".jpg", Size: 10, Dataset: "ds"},
		{SrcPath: "/data/a.jpg", MediaType: "images", Suffix: ".jpg", Size: 10, Dataset: "ds"},
	}

	d, _ := New(ByPath, 0)
	res, err := d.Deduplicate(records)
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}

	if len(res.Unique) != 2 {
		t.Fatalf("got %d unique files, want 2", len(res.Unique))
	}
	if got := res.PathMapping["/data/a.jpg"]; got != "ds/MediaFiles/images/1.jpg" {
		t.Errorf("a.jpg maps to %q, want ds/MediaFiles/images/1.jpg", got)
	}
	if got := res.PathMapping["/data/b.jpg"]; got != "ds/MediaFiles/images/2.jpg" {
		t.Errorf("b.jpg maps to %q, want ds/MediaFiles/images/2.jpg", got)
	}
}

func TestNewUnknownPolicy(t *testing.T) {
	if _, err := New(Policy("bogus"), 1); err == nil {
		t.Error("expected error for unknown policy")
	}
}
