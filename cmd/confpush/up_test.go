package main

import "testing"

func TestAffirmativeDefaultsToNo(t *testing.T) {
	yes := []string{"y\n", "Y\n", "yes\n", " Yes \n"}
	no := []string{"\n", "n\n", "no\n", "sure\n", "ok\n", " \n"}

	for _, line := range yes {
		if !affirmative(line) {
			t.Errorf("affirmative(%q) = false, want true", line)
		}
	}
	for _, line := range no {
		if affirmative(line) {
			t.Errorf("affirmative(%q) = true, want false", line)
		}
	}
}
