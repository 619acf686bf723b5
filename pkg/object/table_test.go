package object

import "testing"

func TestTableKeepsFirstPayloadPerID(t *testing.T) {
	tbl := NewTable([]Object{
		{OID: "bb", Data: []byte("first")},
		{OID: "aa", Data: []byte("a")},
		{OID: "bb", Data: []byte("second")},
	})
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tbl.Len())
	}
	data, ok := tbl.Get("bb")
	if !ok || string(data) != "first" {
		t.Fatalf("Get(bb) = %q, %v; want %q, true", data, ok, "first")
	}
	if tbl.Add(Object{OID: "aa", Data: []byte("again")}) {
		t.Fatalf("Add of existing id reported true")
	}
	ids := tbl.IDs()
	if len(ids) != 2 || ids[0] != "aa" || ids[1] != "bb" {
		t.Fatalf("IDs = %v, want [aa bb]", ids)
	}
	if tbl.Has("cc") {
		t.Fatalf("Has(cc) = true")
	}
}
