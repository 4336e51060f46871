package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/hydrosight/waterbodies/internal/objstore"
)

// Memory is an in-process catalog. Find results are ordered by acquisition
// time, then by id, so repeated queries build identical task lists.
type Memory struct {
	datasets []Dataset
}

func NewMemory(datasets []Dataset) *Memory {
	ds := make([]Dataset, len(datasets))
	copy(ds, datasets)
	sortDatasets(ds)
	return &Memory{datasets: ds}
}

// Load reads a JSON array of datasets from the object store, as produced by
// an external indexing step.
func Load(ctx context.Context, store objstore.Store, key string) (*Memory, error) {
	body, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var ds []Dataset
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ds); err != nil {
		return nil, err
	}
	return NewMemory(ds), nil
}

func (m *Memory) Find(_ context.Context, q Query) ([]Dataset, error) {
	var out []Dataset
	for _, d := range m.datasets {
		if q.matches(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func sortDatasets(ds []Dataset) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].AcquisitionTime.Equal(ds[j].AcquisitionTime) {
			return ds[i].AcquisitionTime.Before(ds[j].AcquisitionTime)
		}
		return ds[i].ID.String() < ds[j].ID.String()
	})
}
