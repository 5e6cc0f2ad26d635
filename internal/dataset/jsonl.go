package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// maxLineBytes bounds a single metafile line. Records with very long
// conversations or many media references fit comfortably under 16 MiB.
const maxLineBytes = 16 << 20

// LoadJSONL reads records from a JSONL file. Blank lines are skipped and
// malformed lines are logged and dropped, matching how the rest of the
// pipeline treats partially damaged metafiles: salvage what parses.
func LoadJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			log.Warn().Str("file", path).Int("line", line).Err(err).Msg("skipping malformed metafile line")
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// SaveJSONL writes records to path, creating parent directories. An empty
// record set writes nothing and leaves no file behind.
func SaveJSONL(records []Record, path string) error {
	if len(records) == 0 {
		log.Warn().Str("path", path).Msg("no records to save, skipping")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record for %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// MarshalJSONL renders records as JSONL bytes without touching disk; used
// when metafile bodies go straight into archive volumes.
func MarshalJSONL(records []Record) ([]byte, error) {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode record: %w", err)
		}
	}
	return []byte(b.String()), nil
}

// SaveMetafiles chunks records into meta_NNNNNN.jsonl files of at most
// chunkSize records each under dir.
func SaveMetafiles(records []Record, dir string, chunkSize int) error {
	if chunkSize < 1 {
		chunkSize = 1000
	}
	for i := 0; i < len(records); i += chunkSize {
		end := i + chunkSize
		if end > len(records) {
			end = len(records)
		}
		name := fmt.Sprintf("meta_%06d.jsonl", i/chunkSize)
		if err := SaveJSONL(records[i:end], filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// appendLocks serializes appends per destination file so concurrent workers
// can stream into the same output without interleaving lines.
var appendLocks sync.Map

// AppendJSONL appends records to path under a per-path lock.
func AppendJSONL(records []Record, path string) error {
	if len(records) == 0 {
		return nil
	}
	muAny, _ := appendLocks.LoadOrStore(path, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record for %s: %w", path, err)
		}
	}
	return w.Flush()
}

// FindMetafiles returns every .jsonl file under dir, recursively, sorted.
func FindMetafiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".jsonl") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
