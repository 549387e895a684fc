package gateway

import (
	"testing"
	"time"
)

func TestRegistryAddAssignsUniqueIDs(t *testing.T) {
	reg := NewRegistry()
	a := reg.Add(nil)
	b := reg.Add(nil)

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected ids to be generated")
	}
	if a.ID == b.ID {
		t.Fatalf("ids must be unique, both %q", a.ID)
	}
	if reg.Count() != 2 {
		t.Fatalf("expected 2 connections, got %d", reg.Count())
	}
	if a.CreatedAt.IsZero() || a.LastActivity().IsZero() {
		t.Fatal("timestamps must be set at registration")
	}
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	conn := reg.Add(nil)

	if _, ok := reg.Remove(conn.ID); !ok {
		t.Fatal("first remove should find the connection")
	}
	if _, ok := reg.Remove(conn.ID); ok {
		t.Fatal("second remove must be a no-op")
	}
	if _, ok := reg.Remove("never-registered"); ok {
		t.Fatal("removing a missing id must be a no-op")
	}
	if reg.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Count())
	}
}

func TestRegistryGetAfterRemove(t *testing.T) {
	reg := NewRegistry()
	conn := reg.Add(nil)
	reg.Remove(conn.ID)

	if _, ok := reg.Get(conn.ID); ok {
		t.Fatal("removed connection must not be resolvable")
	}
}

func TestRegistryListReportsActivity(t *testing.T) {
	reg := NewRegistry()
	conn := reg.Add(nil)
	conn.setLastActivity(time.Now().Add(-time.Hour))

	infos := reg.List()
	if len(infos) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(infos))
	}
	if infos[0].ID != conn.ID {
		t.Fatalf("unexpected id %q", infos[0].ID)
	}
	if !infos[0].LastActivity.Equal(conn.LastActivity()) {
		t.Fatal("list must report the connection's last activity")
	}
	if infos[0].ConnectedAt.IsZero() {
		t.Fatal("connected_at must be set")
	}
}

func TestRegistryIDsSnapshot(t *testing.T) {
	reg := NewRegistry()
	conn := reg.Add(nil)

	ids := reg.IDs()
	if len(ids) != 1 || ids[0] != conn.ID {
		t.Fatalf("unexpected snapshot %v", ids)
	}

	reg.Remove(conn.ID)
	if len(ids) != 1 {
		t.Fatal("snapshot must be unaffected by later removal")
	}
}
