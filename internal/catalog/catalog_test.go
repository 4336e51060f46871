package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

func ds(product string, bound orb.Bound, acquired string) Dataset {
	at, err := time.Parse(time.RFC3339, acquired)
	if err != nil {
		panic(err)
	}
	return Dataset{
		ID:              uuid.NewSHA1(uuid.NameSpaceOID, []byte(product+acquired)),
		Product:         product,
		Footprint:       bound,
		AcquisitionTime: at,
		CreationTime:    at.Add(24 * time.Hour),
	}
}

func TestMemoryFindFilters(t *testing.T) {
	a := ds("wofs_summary", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{96000, 96000}}, "2020-01-05T00:10:00Z")
	b := ds("wofs_summary", orb.Bound{Min: orb.Point{200000, 0}, Max: orb.Point{300000, 96000}}, "2020-01-06T00:10:00Z")
	c := ds("wofs_scene", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{96000, 96000}}, "2020-01-05T00:10:00Z")
	cat := NewMemory([]Dataset{b, a, c})

	got, err := cat.Find(context.Background(), Query{Product: "wofs_summary"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d datasets, want 2", len(got))
	}
	// ordered by acquisition time
	if !got[0].AcquisitionTime.Before(got[1].AcquisitionTime) {
		t.Fatal("results not ordered by acquisition time")
	}

	got, err = cat.Find(context.Background(), Query{
		Product: "wofs_summary",
		Bound:   orb.Bound{Min: orb.Point{50000, 50000}, Max: orb.Point{60000, 60000}},
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("bound filter returned %v", got)
	}
}

func TestMemoryFindTimeWindow(t *testing.T) {
	a := ds("p", orb.Bound{Max: orb.Point{1, 1}}, "2020-01-05T00:00:00Z")
	b := ds("p", orb.Bound{Max: orb.Point{1, 1}}, "2020-02-05T00:00:00Z")
	cat := NewMemory([]Dataset{a, b})

	after, _ := time.Parse(time.RFC3339, "2020-01-10T00:00:00Z")
	got, err := cat.Find(context.Background(), Query{AcquiredAfter: after})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("time filter returned %v", got)
	}

	before, _ := time.Parse(time.RFC3339, "2020-02-05T00:00:00Z")
	got, err = cat.Find(context.Background(), Query{AcquiredBefore: before})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("exclusive end returned %v", got)
	}
}

func TestMemoryFindCreatedAfter(t *testing.T) {
	a := ds("p", orb.Bound{Max: orb.Point{1, 1}}, "2020-01-05T00:00:00Z")
	cat := NewMemory([]Dataset{a})

	got, err := cat.Find(context.Background(), Query{CreatedAfter: a.CreationTime})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("created-after filter should be strict, got %v", got)
	}
}
