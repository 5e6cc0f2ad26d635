// Package archive packs deduplicated media into size-bounded zip volumes
// and extracts them again on the receiving side.
package archive

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// Entry is one unique media file placed into a volume.
type Entry struct {
	SrcPath     string
	ArchivePath string // destination inside the zip
	Size        int64
	Hash        string
	Dataset     string
}

// Volume is one output archive: an ordered subset of entries plus the shared
// payload duplicated into every volume. Bytes counts media plus the shared
// payload overhead.
type Volume struct {
	Entries []Entry
	Bytes   int64
}

// PackVolumes distributes entries across volumes whose content stays within
// capBytes. overheadBytes is the size of the shared payload (metafile bodies
// and manifest) that every volume carries, so it counts against each
// volume's budget.
//
// Entries are taken largest-first; greedy packing by descending size wastes
// less capacity than arrival order. An entry that does not fit into the
// running volume seals it and starts a new one. A single entry that exceeds
// capBytes on its own is placed alone in an oversized volume rather than
// rejected.
func PackVolumes(entries []Entry, overheadBytes, capBytes int64) []Volume {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Size != sorted[j].Size {
			return sorted[i].Size > sorted[j].Size
		}
		return sorted[i].ArchivePath < sorted[j].ArchivePath
	})

	var volumes []Volume
	current := Volume{Bytes: overheadBytes}
	for _, e := range sorted {
		if len(current.Entries) > 0 && current.Bytes+e.Size > capBytes {
			volumes = append(volumes, current)
			current = Volume{Bytes: overheadBytes}
		}
		current.Entries = append(current.Entries, e)
		current.Bytes += e.Size
	}
	volumes = append(volumes, current)

	for i, v := range volumes {
		if v.Bytes > capBytes {
			log.Warn().
				Int("volume", i+1).
				Int64("bytes", v.Bytes).
				Int64("cap", capBytes).
				Msg("volume exceeds cap (single oversized entry)")
		}
	}
	log.Info().Int("volumes", len(volumes)).Int("entries", len(entries)).Msg("volume plan ready")
	return volumes
}
