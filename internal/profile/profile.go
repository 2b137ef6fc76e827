// Package profile defines the per-level parameter tables confpush
// distributes to devices: a handful of base parameters plus two outcome
// distributions counted per 10000 rounds.
package profile

import (
	"fmt"
	"sort"
)

const (
	// MinLevel and MaxLevel bound the valid level range.
	MinLevel = 1
	MaxLevel = 9

	// DistributionTotal is the required sum of each outcome distribution.
	// Counts are "occurrences per 10000 rounds".
	DistributionTotal = 10000
)

// BaseFields are the scalar parameters of a level.
// Rate fields are percentages (0..100); pool_min must stay below pool_max.
var BaseFields = []string{
	"bonus_difficulty",
	"pool_max",
	"pool_min",
	"pool_return_rate",
	"overall_return_rate",
}

// DrawFields are the outcomes of the main draw distribution.
// jackpot_entry is the bonus-round entry outcome and may legitimately be 0.
var DrawFields = []string{
	"triple",
	"apple",
	"orange",
	"lemon",
	"bell",
	"melon",
	"twin_star",
	"ninety_nine",
	"bar_small",
	"bar_mid",
	"bar_big",
	"jackpot_entry",
}

// BonusFields are the outcomes of the bonus-round distribution.
var BonusFields = []string{
	"double_shot",
	"big_four",
	"small_three",
	"big_three",
	"bonus_pool",
	"train",
	"all_win",
	"grand_slam",
	"scatter",
	"morph",
}

// AllFields returns every field name in canonical order.
func AllFields() []string {
	out := make([]string, 0, len(BaseFields)+len(DrawFields)+len(BonusFields))
	out = append(out, BaseFields...)
	out = append(out, DrawFields...)
	out = append(out, BonusFields...)
	return out
}

// Table holds one level's field values keyed by field name.
type Table map[string]int

// Clone returns a deep copy.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Merge copies the given field values over t, ignoring unknown fields.
func (t Table) Merge(updates map[string]int) {
	known := make(map[string]bool)
	for _, f := range AllFields() {
		known[f] = true
	}
	for k, v := range updates {
		if known[k] {
			t[k] = v
		}
	}
}

// Sum returns the total of the named fields.
func (t Table) Sum(fields []string) int {
	total := 0
	for _, f := range fields {
		total += t[f]
	}
	return total
}

// Set maps level numbers to their tables.
type Set map[int]Table

// Clone returns a deep copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for level, t := range s {
		out[level] = t.Clone()
	}
	return out
}

// Levels returns the set's levels in ascending order.
func (s Set) Levels() []int {
	levels := make([]int, 0, len(s))
	for l := range s {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	return levels
}

// ValidLevel reports whether level is in the supported range.
func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}

// Normalize scales the draw and bonus distributions of t so each sums to
// exactly DistributionTotal. Values are scaled proportionally and the
// rounding remainder is folded into the last field of the distribution.
func Normalize(t Table) {
	normalizeFields(t, DrawFields)
	normalizeFields(t, BonusFields)
}

func normalizeFields(t Table, fields []string) {
	total := t.Sum(fields)
	if total == 0 {
		return
	}
	scale := float64(DistributionTotal) / float64(total)
	for _, f := range fields {
		t[f] = int(float64(t[f]) * scale)
	}
	// Fold the integer-rounding remainder into the last outcome.
	t[fields[len(fields)-1]] += DistributionTotal - t.Sum(fields)
}

// Expand fills in levels MinLevel..MaxLevel from a sparse seed set.
// Seeded levels are copied; unseeded levels are linearly interpolated
// field-by-field between the nearest seeded levels below and above (the
// nearest single seed is copied when only one side exists).
func Expand(seeds Set) (Set, error) {
	anchors := seeds.Levels()
	if len(anchors) == 0 {
		return nil, fmt.Errorf("expanding profiles: no seed levels")
	}
	for _, l := range anchors {
		if !ValidLevel(l) {
			return nil, fmt.Errorf("expanding profiles: seed level %d out of range", l)
		}
	}

	out := make(Set, MaxLevel)
	for level := MinLevel; level <= MaxLevel; level++ {
		if t, ok := seeds[level]; ok {
			out[level] = t.Clone()
			continue
		}
		lo, hi := nearestAnchors(anchors, level)
		out[level] = interpolate(seeds[lo], seeds[hi], lo, hi, level)
	}
	return out, nil
}

// nearestAnchors returns the greatest seeded level <= level and the least
// seeded level >= level. Outside the seeded range both are the nearest edge.
func nearestAnchors(anchors []int, level int) (lo, hi int) {
	lo, hi = anchors[0], anchors[len(anchors)-1]
	for _, a := range anchors {
		if a <= level {
			lo = a
		}
	}
	for i := len(anchors) - 1; i >= 0; i-- {
		if anchors[i] >= level {
			hi = anchors[i]
		}
	}
	if lo > level {
		lo = hi
	}
	if hi < level {
		hi = lo
	}
	return lo, hi
}

func interpolate(low, high Table, lo, hi, level int) Table {
	out := make(Table, len(low))
	ratio := 0.0
	if hi != lo {
		ratio = float64(level-lo) / float64(hi-lo)
	}
	for _, f := range AllFields() {
		lv, hv := low[f], high[f]
		out[f] = lv + int(float64(hv-lv)*ratio)
	}
	return out
}
