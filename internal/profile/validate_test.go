package profile

import (
	"strings"
	"testing"
)

// goodTable builds a table that passes every rule.
func goodTable() Table {
	t := Table{
		"bonus_difficulty":    50,
		"pool_max":            5000,
		"pool_min":            1000,
		"pool_return_rate":    80,
		"overall_return_rate": 90,
	}
	spread(t, DrawFields)
	spread(t, BonusFields)
	return t
}

func spread(t Table, fields []string) {
	per := DistributionTotal / len(fields)
	for _, f := range fields {
		t[f] = per
	}
	t[fields[len(fields)-1]] += DistributionTotal - per*len(fields)
}

func TestValidateAcceptsGoodTable(t *testing.T) {
	r := Validate(goodTable())
	if !r.Valid() {
		t.Fatalf("good table rejected: %v", r.Issues)
	}
	if r.DrawTotal != DistributionTotal || r.BonusTotal != DistributionTotal {
		t.Errorf("totals = %d/%d, want %d", r.DrawTotal, r.BonusTotal, DistributionTotal)
	}
}

func TestValidateFlagsBadSum(t *testing.T) {
	table := goodTable()
	table["triple"] += 5
	r := Validate(table)
	if r.Valid() {
		t.Fatal("off-by-five draw sum accepted")
	}
	if !containsSubstring(r.Issues, "draw distribution") {
		t.Errorf("missing draw sum issue: %v", r.Issues)
	}
}

func TestValidateFlagsNegativeCount(t *testing.T) {
	table := goodTable()
	table["bell"] = -1
	r := Validate(table)
	if !containsSubstring(r.Issues, "bell is negative") {
		t.Errorf("missing negative issue: %v", r.Issues)
	}
}

func TestValidateZeroIsWarningExceptJackpotEntry(t *testing.T) {
	table := goodTable()
	moved := table["jackpot_entry"]
	table["jackpot_entry"] = 0
	table["triple"] += moved

	r := Validate(table)
	if !r.Valid() {
		t.Fatalf("zero jackpot_entry made table invalid: %v", r.Issues)
	}
	if containsSubstring(r.Warnings, "jackpot_entry") {
		t.Errorf("jackpot_entry zero warned: %v", r.Warnings)
	}

	moved = table["triple"]
	table["triple"] = 0
	table["jackpot_entry"] += moved
	r = Validate(table)
	if !containsSubstring(r.Warnings, "triple is 0") {
		t.Errorf("zero outcome not warned: %v", r.Warnings)
	}
}

func TestValidateFlagsPoolBoundsAndRates(t *testing.T) {
	table := goodTable()
	table["pool_min"] = table["pool_max"]
	table["overall_return_rate"] = 150

	r := Validate(table)
	if !containsSubstring(r.Issues, "pool_min") {
		t.Errorf("missing pool bounds issue: %v", r.Issues)
	}
	if !containsSubstring(r.Issues, "overall_return_rate out of range") {
		t.Errorf("missing rate range issue: %v", r.Issues)
	}
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
