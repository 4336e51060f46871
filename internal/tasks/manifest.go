package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/hydrosight/waterbodies/internal/objstore"
)

// Manifest is the frozen task list a run works from. Fingerprint covers the
// task array so a worker can detect a manifest rewritten mid-run.
type Manifest struct {
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
	Tasks       []Task    `json:"tasks"`
}

func fingerprint(ts []Task) (string, error) {
	body, err := json.Marshal(ts)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(body)), nil
}

func WriteManifest(ctx context.Context, store objstore.Store, key string, ts []Task) (Manifest, error) {
	fp, err := fingerprint(ts)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{CreatedAt: time.Now().UTC(), Fingerprint: fp, Tasks: ts}
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	if err := store.Put(ctx, key, body); err != nil {
		return Manifest{}, fmt.Errorf("write manifest %q: %w", key, err)
	}
	return m, nil
}

func ReadManifest(ctx context.Context, store objstore.Store, key string) (Manifest, error) {
	body, err := store.Get(ctx, key)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %q: %w", key, err)
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %q: %w", key, err)
	}
	fp, err := fingerprint(m.Tasks)
	if err != nil {
		return Manifest{}, err
	}
	if fp != m.Fingerprint {
		return Manifest{}, fmt.Errorf("manifest %q: fingerprint mismatch", key)
	}
	return m, nil
}

// WriteFailed records the task ids a worker could not finish, one per line.
// Each worker writes its own key under a shared prefix.
func WriteFailed(ctx context.Context, store objstore.Store, key string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return store.Put(ctx, key, []byte(strings.Join(ids, "\n")+"\n"))
}

// ReadFailed merges every failed-task list under the prefix into one sorted,
// deduplicated id list.
func ReadFailed(ctx context.Context, store objstore.Store, prefix string) ([]string, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, k := range keys {
		body, err := store.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(body), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				seen[line] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Filter keeps the tasks whose ids are in the keep set, preserving order.
// Used to rebuild a retry manifest from a failed-task list.
func Filter(ts []Task, keep []string) []Task {
	set := make(map[string]bool, len(keep))
	for _, id := range keep {
		set[id] = true
	}
	var out []Task
	for _, t := range ts {
		if set[t.ID()] {
			out = append(out, t)
		}
	}
	return out
}
