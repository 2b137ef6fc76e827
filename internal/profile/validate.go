package profile

import "fmt"

// Report is the outcome of validating one level's table.
type Report struct {
	Issues   []string
	Warnings []string

	DrawTotal  int
	BonusTotal int
}

// Valid reports whether the table passed with no hard issues.
func (r Report) Valid() bool {
	return len(r.Issues) == 0
}

// Validate checks a table against the device-side rules: distributions must
// sum to DistributionTotal, counts must not be negative, pool bounds must be
// ordered, and rate fields must be percentages.
func Validate(t Table) Report {
	var r Report

	r.DrawTotal = t.Sum(DrawFields)
	if r.DrawTotal != DistributionTotal {
		r.Issues = append(r.Issues,
			fmt.Sprintf("draw distribution sums to %d, want %d", r.DrawTotal, DistributionTotal))
	}

	r.BonusTotal = t.Sum(BonusFields)
	if r.BonusTotal != DistributionTotal {
		r.Issues = append(r.Issues,
			fmt.Sprintf("bonus distribution sums to %d, want %d", r.BonusTotal, DistributionTotal))
	}

	for _, f := range append(append([]string{}, DrawFields...), BonusFields...) {
		v := t[f]
		if v < 0 {
			r.Issues = append(r.Issues, fmt.Sprintf("%s is negative: %d", f, v))
			continue
		}
		// jackpot_entry is the bonus-round entry and may be disabled.
		if v == 0 && f != "jackpot_entry" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s is 0, possibly misconfigured", f))
		}
	}

	if t["pool_min"] >= t["pool_max"] {
		r.Issues = append(r.Issues,
			fmt.Sprintf("pool_min (%d) >= pool_max (%d)", t["pool_min"], t["pool_max"]))
	}
	for _, f := range []string{"bonus_difficulty", "pool_return_rate", "overall_return_rate"} {
		if v := t[f]; v < 0 || v > 100 {
			r.Issues = append(r.Issues, fmt.Sprintf("%s out of range: %d", f, v))
		}
	}

	return r
}
