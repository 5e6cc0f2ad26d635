package dataset

// MediaKinds are the record fields that hold media references, in the order
// they are scanned.
var MediaKinds = []string{"images", "videos", "audios"}

// Record is one metafile line. Datasets carry arbitrary extra fields, so
// records stay map-backed and round-trip unknown keys untouched; the typed
// accessors below cover the fields the toolkit manipulates.
type Record map[string]any

// ID returns the record's id field, or "" when absent.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// MediaPaths returns the media references of one kind ("images", "videos"
// or "audios"). Non-string entries are dropped.
func (r Record) MediaPaths(kind string) []string {
	raw, ok := r[kind].([]any)
	if !ok {
		return nil
	}
	paths := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			paths = append(paths, s)
		}
	}
	return paths
}

// SetMediaPaths replaces the media references of one kind.
func (r Record) SetMediaPaths(kind string, paths []string) {
	vals := make([]any, len(paths))
	for i, p := range paths {
		vals[i] = p
	}
	r[kind] = vals
}

// Message is one conversation turn inside a record.
type Message struct {
	Role    string
	Content string
}

// Messages returns the record's conversation turns.
func (r Record) Messages() []Message {
	raw, ok := r["messages"].([]any)
	if !ok {
		return nil
	}
	msgs := make([]Message, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		msgs = append(msgs, Message{Role: role, Content: content})
	}
	return msgs
}

// Metadata returns the record's metadata map, creating it if absent.
func (r Record) Metadata() map[string]any {
	if m, ok := r["metadata"].(map[string]any); ok {
		return m
	}
	m := make(map[string]any)
	r["metadata"] = m
	return m
}

// Clone returns a copy of the record one level deep: media lists and the
// metadata map are copied, nested values inside them are shared.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		switch vv := v.(type) {
		case []any:
			list := make([]any, len(vv))
			copy(list, vv)
			out[k] = list
		case map[string]any:
			m := make(map[string]any, len(vv))
			for mk, mv := range vv {
				m[mk] = mv
			}
			out[k] = m
		default:
			out[k] = v
		}
	}
	return out
}

// Item is one metafile line with its provenance, the unit every batch
// operation works on.
type Item struct {
	Dataset  string
	Metafile string
	Line     int
	Record   Record
}
