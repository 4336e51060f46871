package store

import (
	"context"
	"errors"
	"testing"

	"github.com/hydrosight/waterbodies/internal/inventory"
)

func wb(uid string, id int32, area float64) inventory.Waterbody {
	return inventory.Waterbody{UID: uid, WBID: id, AreaM2: area}
}

func TestMemoryUpsertWaterbodies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.UpsertWaterbodies(ctx, []inventory.Waterbody{wb("b", 2, 900), wb("a", 1, 1800)}, false); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := m.LoadWaterbodies(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].UID != "a" || got[1].UID != "b" {
		t.Fatalf("load gave %v", got)
	}

	// without update, an existing row keeps its values
	if err := m.UpsertWaterbodies(ctx, []inventory.Waterbody{wb("a", 1, 9999)}, false); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ = m.LoadWaterbodies(ctx)
	if got[0].AreaM2 != 1800 {
		t.Fatalf("no-update upsert changed row: %v", got[0])
	}

	// with update, it is refreshed
	if err := m.UpsertWaterbodies(ctx, []inventory.Waterbody{wb("a", 1, 9999)}, true); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ = m.LoadWaterbodies(ctx)
	if got[0].AreaM2 != 9999 {
		t.Fatalf("update upsert did not change row: %v", got[0])
	}
}

func TestMemoryObservationsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	o := Observation{OBSID: "2020-01-01/x001/y002_abc", UID: "abc", SolarDay: "2020-01-01", PxWet: 10}

	if err := m.UpsertObservations(ctx, []Observation{o}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	o.PxWet = 12
	if err := m.UpsertObservations(ctx, []Observation{o}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got := m.Observations()
	if len(got) != 1 || got[0].PxWet != 12 {
		t.Fatalf("observations %v", got)
	}
}

func TestMemoryTaskObservationsExist(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	o := Observation{OBSID: "2020-01-01/x001/y002_abc", UID: "abc", SolarDay: "2020-01-01"}
	if err := m.UpsertObservations(ctx, []Observation{o}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ok, err := m.TaskObservationsExist(ctx, "2020-01-01/x001/y002")
	if err != nil || !ok {
		t.Fatalf("expected task observations: %v %v", ok, err)
	}
	ok, err = m.TaskObservationsExist(ctx, "2020-01-02/x001/y002")
	if err != nil || ok {
		t.Fatalf("unexpected task observations: %v %v", ok, err)
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := withRetry(ctx, 3, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err %v after %d calls", err, calls)
	}

	calls = 0
	err = withRetry(ctx, 2, func() error {
		calls++
		return errors.New("persistent")
	})
	if err == nil || calls != 3 {
		t.Fatalf("want failure after 3 calls, got err %v after %d", err, calls)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	calls = 0
	if err := withRetry(cancelled, 2, func() error { calls++; return nil }); err == nil || calls != 0 {
		t.Fatalf("cancelled context ran op %d times, err %v", calls, err)
	}
}

func TestMemoryLastObservationDay(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if day, _ := m.LastObservationDay(ctx); day != "" {
		t.Fatalf("empty store has last day %q", day)
	}
	obs := []Observation{
		{OBSID: "a", SolarDay: "2020-03-01"},
		{OBSID: "b", SolarDay: "2020-01-01"},
	}
	if err := m.UpsertObservations(ctx, obs); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if day, _ := m.LastObservationDay(ctx); day != "2020-03-01" {
		t.Fatalf("last day %q", day)
	}
}
