package object

import "sort"

// Table indexes objects by id. The first payload seen for an id wins.
type Table struct {
	objects map[ID][]byte
}

// NewTable builds a table from objs, dropping duplicate ids.
func NewTable(objs []Object) *Table {
	t := &Table{objects: make(map[ID][]byte, len(objs))}
	for _, o := range objs {
		t.Add(o)
	}
	return t
}

// Add stores o unless its id is already present. It reports whether o was added.
func (t *Table) Add(o Object) bool {
	if _, ok := t.objects[o.OID]; ok {
		return false
	}
	t.objects[o.OID] = o.Data
	return true
}

// Get returns the payload stored for id.
func (t *Table) Get(id ID) ([]byte, bool) {
	data, ok := t.objects[id]
	return data, ok
}

// Has reports whether id is present.
func (t *Table) Has(id ID) bool {
	_, ok := t.objects[id]
	return ok
}

// Len returns the number of distinct ids.
func (t *Table) Len() int {
	return len(t.objects)
}

// IDs returns all ids in sorted order.
func (t *Table) IDs() []ID {
	out := make([]ID, 0, len(t.objects))
	for id := range t.objects {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Objects returns the table's contents sorted by id.
func (t *Table) Objects() []Object {
	ids := t.IDs()
	out := make([]Object, 0, len(ids))
	for _, id := range ids {
		out = append(out, Object{OID: id, Data: t.objects[id]})
	}
	return out
}
