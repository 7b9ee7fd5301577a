// Package sampling implements deterministic percentage-based selection over
// ranked listings. Discovery uses it to pick titles per genre and the review
// extractor uses it to pick reviews per title, with a shared guarantee:
// identical inputs always produce identical selections, so interrupted runs
// re-derive the same sample on resume.
package sampling

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
)

// InvalidPercentageError reports a percentage outside [0, 100]. It is a
// configuration-time failure and aborts the run before any fetching.
type InvalidPercentageError struct {
	Pct float64
}

func (e *InvalidPercentageError) Error() string {
	return fmt.Sprintf("sampling percentage %.2f outside range [0, 100]", e.Pct)
}

// ValidatePercentage checks a configured percentage before any network
// activity happens.
func ValidatePercentage(pct float64) error {
	if pct < 0 || pct > 100 || math.IsNaN(pct) {
		return &InvalidPercentageError{Pct: pct}
	}
	return nil
}

// Size returns the number of selected items for a listing of total items:
// ceil(total * pct / 100).
func Size(total int, pct float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) * pct / 100))
}

// Select returns the sampled ranks, sorted ascending, for a listing of total
// items. Selection is a pure function of (total, pct, key): ranks are ordered
// by a hash of (key, rank) and the first ceil(total*pct/100) are taken.
// Because that ordering is fixed for a given key, raising the percentage only
// ever adds ranks to the selection, never swaps them.
func Select(total int, pct float64, key string) ([]int, error) {
	if err := ValidatePercentage(pct); err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, nil
	}

	size := Size(total, pct)
	if size == 0 {
		return nil, nil
	}
	if size >= total {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	type ranked struct {
		index    int
		priority uint64
	}
	order := make([]ranked, total)
	for i := 0; i < total; i++ {
		order[i] = ranked{index: i, priority: priority(key, i)}
	}
	sort.Slice(order, func(a, b int) bool {
		if order[a].priority != order[b].priority {
			return order[a].priority < order[b].priority
		}
		return order[a].index < order[b].index
	})

	selected := make([]int, size)
	for i := 0; i < size; i++ {
		selected[i] = order[i].index
	}
	sort.Ints(selected)
	return selected, nil
}

// SelectSet is Select with set-shaped output, convenient for membership
// checks while paginating.
func SelectSet(total int, pct float64, key string) (map[int]struct{}, error) {
	indices, err := Select(total, pct, key)
	if err != nil {
		return nil, err
	}
	set := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		set[i] = struct{}{}
	}
	return set, nil
}

func priority(key string, index int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	var buf [8]byte
	v := uint64(index)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
	return h.Sum64()
}
