package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadJSONLSkipsBlankAndMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.jsonl")
	body := `{"id":"a","images":["x.jpg"]}

not json at all
{"id":"b"}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := LoadJSONL(path)
	if err != nil {
		t.Fatalf("LoadJSONL: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID() != "a" || records[1].ID() != "b" {
		t.Errorf("record ids = %q, %q", records[0].ID(), records[1].ID())
	}
}

func TestSaveLoadJSONLRoundTripKeepsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")
	records := []Record{
		{"id": "1", "images": []any{"a.jpg"}, "custom_field": "survives"},
	}

	if err := SaveJSONL(records, path); err != nil {
		t.Fatalf("SaveJSONL: %v", err)
	}
	loaded, err := LoadJSONL(path)
	if err != nil {
		t.Fatalf("LoadJSONL: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("got %d records, want 1", len(loaded))
	}
	if loaded[0]["custom_field"] != "survives" {
		t.Errorf("unknown field lost in round trip: %+v", loaded[0])
	}
}

func TestSaveJSONLEmptyWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	if err := SaveJSONL(nil, path); err != nil {
		t.Fatalf("SaveJSONL: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("empty save must not create a file")
	}
}

func TestSaveMetafilesChunks(t *testing.T) {
	dir := t.TempDir()
	records := make([]Record, 25)
	for i := range records {
		records[i] = Record{"id": i}
	}

	if err := SaveMetafiles(records, dir, 10); err != nil {
		t.Fatalf("SaveMetafiles: %v", err)
	}

	files, err := FindMetafiles(dir)
	if err != nil {
		t.Fatalf("FindMetafiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d chunk files, want 3", len(files))
	}
	if filepath.Base(files[0]) != "meta_000000.jsonl" {
		t.Errorf("first chunk = %s", filepath.Base(files[0]))
	}

	total := 0
	for _, f := range files {
		recs, err := LoadJSONL(f)
		if err != nil {
			t.Fatal(err)
		}
		total += len(recs)
	}
	if total != 25 {
		t.Errorf("chunks hold %d records, want 25", total)
	}
}

func TestAppendJSONLConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appended.jsonl")

	done := make(chan error, 8)
	for w := 0; w < 8; w++ {
		go func(w int) {
			var err error
			for i := 0; i < 20; i++ {
				if e := AppendJSONL([]Record{{"worker": w, "i": i}}, path); e != nil {
					err = e
				}
			}
			done <- err
		}(w)
	}
	for w := 0; w < 8; w++ {
		if err := <-done; err != nil {
			t.Fatalf("AppendJSONL: %v", err)
		}
	}

	records, err := LoadJSONL(path)
	if err != nil {
		t.Fatalf("LoadJSONL: %v", err)
	}
	// Every line must have parsed: interleaved writes would corrupt lines
	// and LoadJSONL would drop them.
	if len(records) != 160 {
		t.Errorf("got %d records, want 160", len(records))
	}
}

func TestFindMetafilesRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested", "deeper")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{
		filepath.Join(dir, "a.jsonl"),
		filepath.Join(sub, "b.jsonl"),
		filepath.Join(dir, "ignored.txt"),
	} {
		if err := os.WriteFile(p, []byte("{}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := FindMetafiles(dir)
	if err != nil {
		t.Fatalf("FindMetafiles: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("got %d metafiles, want 2: %v", len(files), files)
	}
}
