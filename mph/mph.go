// Package mph builds a static perfect hash table over a fixed key set.
// Build draws random seeds until one hashes every key to a distinct slot in a
// quadratically sized table; with n^2 slots a collision-free seed is found
// after two attempts on average, so lookups need exactly one probe.
package mph

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/spaolacci/murmur3"
)

// maxAttempts bounds the seed search. The per-attempt collision probability
// is below 1/2, so exhausting the budget signals a broken hash rather than
// bad luck.
const maxAttempts = 64

var (
	// ErrBuildFailed is returned when no collision-free seed was found
	// within the attempt budget.
	ErrBuildFailed = errors.New("mph: no collision-free seed found")
)

// Table is an immutable perfect hash table. A key probes exactly one slot;
// the slot either holds that key or the key is not in the set.
type Table struct {
	seed  uint32
	keys  []string
	slots []int32 // index into keys, -1 for vacant
}

// Build constructs a perfect hash table over keys. Duplicate keys are
// rejected.
func Build(keys []string, seed int64) (*Table, error) {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("mph: duplicate key %q", k)
		}
		seen[k] = struct{}{}
	}

	t := &Table{keys: append([]string(nil), keys...)}
	if len(keys) == 0 {
		return t, nil
	}

	rng := rand.New(rand.NewSource(seed))
	numSlots := len(keys) * len(keys)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := rng.Uint32()
		slots := make([]int32, numSlots)
		for i := range slots {
			slots[i] = -1
		}

		ok := true
		for i, k := range t.keys {
			slot := slotFor(k, candidate, numSlots)
			if slots[slot] != -1 {
				ok = false
				break
			}
			slots[slot] = int32(i)
		}
		if ok {
			t.seed = candidate
			t.slots = slots
			return t, nil
		}
	}

	return nil, ErrBuildFailed
}

func slotFor(key string, seed uint32, numSlots int) int {
	return int(murmur3.Sum32WithSeed([]byte(key), seed)) % numSlots
}

// Contains reports whether key was in the build set.
func (t *Table) Contains(key string) bool {
	_, ok := t.Lookup(key)
	return ok
}

// Lookup returns the key's index in the original build order.
func (t *Table) Lookup(key string) (int, bool) {
	if len(t.slots) == 0 {
		return 0, false
	}
	i := t.slots[slotFor(key, t.seed, len(t.slots))]
	if i < 0 || t.keys[i] != key {
		return 0, false
	}
	return int(i), true
}

// Len returns the number of keys in the set.
func (t *Table) Len() int {
	return len(t.keys)
}
