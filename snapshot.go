package tupledb

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Snapshot is the unit a Backend persists for a Store: the schema plus every
// entry, in insertion order.
//
// JSON layout: {"types": <schema>, "data": {"<key>": [slot, ...], ...}}.
type Snapshot struct {
	Schema  *Schema
	Entries *orderedmap.OrderedMap[string, Record]
}

func newSnapshot(scm *Schema) *Snapshot {
	return &Snapshot{
		Schema:  scm,
		Entries: orderedmap.New[string, Record](),
	}
}

// Keys returns entry keys in insertion order.
func (snap *Snapshot) Keys() []string {
	keys := make([]string, 0, snap.Entries.Len())
	for p := snap.Entries.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Record returns the stored tuple for key, or nil. The tuple is shared.
func (snap *Snapshot) Record(key string) Record {
	rec, _ := snap.Entries.Get(key)
	return rec
}

// copy duplicates the entry table and the tuple slices. Slot values are
// shared: the engine never mutates a stored value in place.
func (snap *Snapshot) copy() *Snapshot {
	out := newSnapshot(snap.Schema)
	for p := snap.Entries.Oldest(); p != nil; p = p.Next() {
		out.Entries.Set(p.Key, append(Record(nil), p.Value...))
	}
	return out
}

// validate checks that every tuple matches the schema width.
func (snap *Snapshot) validate() error {
	n := snap.Schema.Len()
	for p := snap.Entries.Oldest(); p != nil; p = p.Next() {
		if len(p.Value) != n {
			return fmt.Errorf("entry %q has %d slots, schema has %d fields", p.Key, len(p.Value), n)
		}
	}
	return nil
}

type snapshotDoc struct {
	Types *Schema                                `json:"types"`
	Data  *orderedmap.OrderedMap[string, Record] `json:"data"`
}

func (snap *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotDoc{Types: snap.Schema, Data: snap.Entries})
}

func (snap *Snapshot) UnmarshalJSON(raw []byte) error {
	doc := snapshotDoc{
		Types: &Schema{},
		Data:  orderedmap.New[string, Record](),
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc.Types == nil || doc.Types.names == nil {
		return fmt.Errorf("missing types")
	}
	if doc.Data == nil {
		doc.Data = orderedmap.New[string, Record]()
	}
	snap.Schema = doc.Types
	snap.Entries = doc.Data
	return snap.validate()
}
