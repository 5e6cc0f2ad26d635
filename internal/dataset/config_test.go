package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "datasets.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigValid(t *testing.T) {
	dir := t.TempDir()
	metaDir := filepath.Join(dir, "ds1", "MetaFiles")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		t.Fatal(err)
	}

	path := writeConfig(t, dir, `
DataDir: `+dir+`
Datasets:
  ds1:
    MetaFiles: `+metaDir+`
    sample_nums: 42
TotalSampleNums: 42
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.TotalSampleNums != 42 {
		t.Errorf("TotalSampleNums = %d, want 42", cfg.TotalSampleNums)
	}
	entry := cfg.Datasets["ds1"]
	if entry == nil || entry.MetaFiles != metaDir || entry.SampleNums != 42 {
		t.Errorf("ds1 entry = %+v", entry)
	}
}

func TestLoadConfigRejectsMissingMetaFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
Datasets:
  ds1:
    MetaFiles: `+filepath.Join(dir, "does-not-exist")+`
`)

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for missing MetaFiles directory")
	}
}

func TestLoadConfigRejectsEmpty(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "DataDir: /tmp\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for config without datasets")
	}
}

func TestConfigSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	metaDir := filepath.Join(dir, "MetaFiles")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		Datasets: map[string]*Entry{
			"ds": {MetaFiles: metaDir, SampleNums: 7},
		},
		TotalSampleNums: 7,
	}
	path := filepath.Join(dir, "out.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Datasets["ds"].SampleNums != 7 {
		t.Errorf("round trip lost sample_nums: %+v", loaded.Datasets["ds"])
	}
}
