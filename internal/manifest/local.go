package manifest

import (
	"sort"
	"time"
)

// DefaultVersion is the version of a client that has never applied an update.
const DefaultVersion = "0.0.0"

// Local is the persisted state of one asset class: the manifest version last
// reached and a record per applied identifier.
type Local struct {
	Class       Class             `json:"class"`
	Version     string            `json:"version"`
	LastUpdated string            `json:"lastUpdated,omitempty"`
	Records     map[string]Record `json:"records"`
}

// NewLocal returns the empty state used when nothing has been stored yet.
func NewLocal(class Class) *Local {
	return &Local{
		Class:   class,
		Version: DefaultVersion,
		Records: make(map[string]Record),
	}
}

// LocalFromManifest builds the state a client would have after applying
// every leaf of m.
func LocalFromManifest(m *Manifest) *Local {
	l := NewLocal(m.Class)
	l.Version = m.Version
	l.LastUpdated = m.LastUpdated
	m.Walk(func(_ []string, e *Entry) {
		l.Put(PendingFromEntry(e).Record("", time.Time{}))
	})
	return l
}

// Lookup implements RecordSet.
func (l *Local) Lookup(identifier string) (Record, bool) {
	if l == nil || l.Records == nil {
		return Record{}, false
	}
	r, ok := l.Records[identifier]
	return r, ok
}

// Put inserts or replaces the record for r.Identifier.
func (l *Local) Put(r Record) {
	if l.Records == nil {
		l.Records = make(map[string]Record)
	}
	l.Records[r.Identifier] = r
}

// Clone returns a deep enough copy for a batch to mutate without touching l.
func (l *Local) Clone() *Local {
	c := &Local{
		Class:       l.Class,
		Version:     l.Version,
		LastUpdated: l.LastUpdated,
		Records:     make(map[string]Record, len(l.Records)),
	}
	for k, v := range l.Records {
		c.Records[k] = v
	}
	return c
}

// Identifiers returns the record keys in sorted order.
func (l *Local) Identifiers() []string {
	ids := make([]string, 0, len(l.Records))
	for id := range l.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sorted returns the records ordered by identifier.
func (l *Local) Sorted() []Record {
	ids := l.Identifiers()
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.Records[id])
	}
	return out
}
