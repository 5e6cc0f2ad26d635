package dedupe

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/fpang/dataset-curator/internal/pool"
)

// FileRecord is one media reference discovered while scanning metafile
// records. Immutable once created; records are discarded after hashing.
type FileRecord struct {
	SrcPath   string
	MediaType string // "images", "videos" or "audios"
	Suffix    string // file extension including the dot, may be empty
	Size      int64
	Dataset   string
	ItemID    string
}

// UniqueFile is the canonical representative chosen for one content
// identity. Index is assigned per (dataset, media type) and builds the
// destination name.
type UniqueFile struct {
	Hash      string
	SrcPath   string
	MediaType string
	Index     int
	Suffix    string
	Size      int64
	Dataset   string
}

// RelPath is the destination of this file relative to the archive root. The
// dataset prefix keeps destinations unambiguous when identical content is
// referenced from more than one dataset: every reference points at the
// canonical copy's directory.
func (u UniqueFile) RelPath() string {
	return fmt.Sprintf("%s/MediaFiles/%s/%d%s", u.Dataset, u.MediaType, u.Index, u.Suffix)
}

// Result is the output of one deduplication pass. Every scanned source path
// appears in PathMapping; paths with identical content map to the same
// destination. CountByType counts unique files per dataset and media type
// for the export summary.
type Result struct {
	Unique      []UniqueFile
	PathMapping map[string]string
	CountByType map[string]map[string]int
}

// Deduplicator reduces a stream of file records to the unique file set and
// the source-to-destination path mapping.
type Deduplicator interface {
	Deduplicate(records []FileRecord) (*Result, error)
}

// Policy selects the deduplication strategy.
type Policy string

const (
	// ByHash groups files by size and hashes within same-size groups, so
	// byte-identical files share one destination regardless of path.
	ByHash Policy = "hash"
	// ByPath treats every distinct source path as unique. Cheaper, and
	// correct when the source tree is already deduplicated.
	ByPath Policy = "path"
)

// New returns the deduplicator for the given policy. workers bounds the
// concurrency of content hashing and is ignored by ByPath.
func New(policy Policy, workers int) (Deduplicator, error) {
	switch policy {
	case ByHash:
		return &hashDeduplicator{workers: workers}, nil
	case ByPath:
		return &pathDeduplicator{}, nil
	default:
		return nil, fmt.Errorf("unknown dedup policy %q", policy)
	}
}

// counters assigns per-(dataset, media type) destination indexes. Index
// assignment is sequential; only hashing runs concurrently.
type counters map[string]map[string]int

func (c counters) next(dataset, mediaType string) int {
	byType, ok := c[dataset]
	if !ok {
		byType = make(map[string]int)
		c[dataset] = byType
	}
	byType[mediaType]++
	return byType[mediaType]
}

type hashDeduplicator struct {
	workers int
}

type hashedRecord struct {
	record FileRecord
	hash   string // empty when hashing failed
}

func (d *hashDeduplicator) Deduplicate(records []FileRecord) (*Result, error) {
	res := &Result{
		PathMapping: make(map[string]string),
		CountByType: make(counters),
	}
	cnt := counters(res.CountByType)

	// Group by exact byte size, first occurrence of a path wins.
	seen := make(map[string]bool, len(records))
	sizeGroups := make(map[int64][]FileRecord)
	for _, rec := range records {
		if seen[rec.SrcPath] {
			continue
		}
		seen[rec.SrcPath] = true
		sizeGroups[rec.Size] = append(sizeGroups[rec.Size], rec)
	}
	log.Info().
		Int("records", len(records)).
		Int("distinct_paths", len(seen)).
		Int("size_groups", len(sizeGroups)).
		Msg("grouped media files by size")

	// A size shared by a single file cannot collide: assign it directly
	// and skip hashing. Only multi-member groups pay for content reads.
	var toHash []FileRecord
	var singles []FileRecord
	for _, group := range sizeGroups {
		if len(group) == 1 {
			singles = append(singles, group[0])
			continue
		}
		toHash = append(toHash, group...)
	}
	// Deterministic assignment order regardless of map iteration.
	sort.Slice(singles, func(i, j int) bool { return singles[i].SrcPath < singles[j].SrcPath })
	for _, rec := range singles {
		d.assign(res, cnt, rec, fmt.Sprintf("size_%d_%s", rec.Size, rec.SrcPath))
	}

	if len(toHash) > 0 {
		log.Info().Int("files", len(toHash)).Int("workers", d.workers).Msg("hashing same-size groups")
		var exec pool.QueueFed[FileRecord, hashedRecord]
		hashed := exec.Run(toHash, d.workers, func(worker int, rec FileRecord) (hashedRecord, error) {
			h, err := HashFile(rec.SrcPath)
			if err != nil {
				// A file we cannot hash must still reach the
				// archive: mark it for a synthetic identity
				// instead of dropping it.
				log.Warn().Err(err).Str("path", rec.SrcPath).Msg("hash failed, treating file as unique")
				return hashedRecord{record: rec}, nil
			}
			return hashedRecord{record: rec, hash: h}, nil
		})

		sort.Slice(hashed, func(i, j int) bool { return hashed[i].record.SrcPath < hashed[j].record.SrcPath })
		canonical := make(map[string]string) // hash -> destination rel path
		for _, hr := range hashed {
			if hr.hash == "" {
				d.assign(res, cnt, hr.record, "unhashed_"+hr.record.SrcPath)
				continue
			}
			// Size is part of the identity so equal hashes from
			// different size groups never merge.
			key := fmt.Sprintf("%d_%s", hr.record.Size, hr.hash)
			if rel, ok := canonical[key]; ok {
				res.PathMapping[hr.record.SrcPath] = rel
				continue
			}
			canonical[key] = d.assign(res, cnt, hr.record, key)
		}
	}

	log.Info().
		Int("original", len(seen)).
		Int("unique", len(res.Unique)).
		Int("saved", len(seen)-len(res.Unique)).
		Msg("media deduplication complete")
	return res, nil
}

// assign makes rec the canonical representative for key and returns its
// destination path.
func (d *hashDeduplicator) assign(res *Result, cnt counters, rec FileRecord, key string) string {
	u := UniqueFile{
		Hash:      key,
		SrcPath:   rec.SrcPath,
		MediaType: rec.MediaType,
		Index:     cnt.next(rec.Dataset, rec.MediaType),
		Suffix:    rec.Suffix,
		Size:      rec.Size,
		Dataset:   rec.Dataset,
	}
	res.Unique = append(res.Unique, u)
	rel := u.RelPath()
	res.PathMapping[rec.SrcPath] = rel
	return rel
}

type pathDeduplicator struct{}

func (d *pathDeduplicator) Deduplicate(records []FileRecord) (*Result, error) {
	res := &Result{
		PathMapping: make(map[string]string),
		CountByType: make(counters),
	}
	cnt := counters(res.CountByType)

	for _, rec := range records {
		if _, ok := res.PathMapping[rec.SrcPath]; ok {
			continue
		}
		u := UniqueFile{
			Hash:      rec.SrcPath,
			SrcPath:   rec.SrcPath,
			MediaType: rec.MediaType,
			Index:     cnt.next(rec.Dataset, rec.MediaType),
			Suffix:    rec.Suffix,
			Size:      rec.Size,
			Dataset:   rec.Dataset,
		}
		res.Unique = append(res.Unique, u)
		res.PathMapping[rec.SrcPath] = u.RelPath()
	}

	log.Info().
		Int("records", len(records)).
		Int("unique", len(res.Unique)).
		Msg("path deduplication complete")
	return res, nil
}
