package profile

// Seed tables for the nine levels. Distribution rows are raw counts and do
// not all sum to DistributionTotal; Defaults normalizes them.

var baseSeeds = map[int][5]int{
	// bonus_difficulty, pool_max, pool_min, pool_return_rate, overall_return_rate
	1: {20, 2000, 300, 80, 83},
	2: {25, 2400, 400, 75, 78},
	3: {30, 2800, 500, 70, 73},
	4: {35, 3200, 600, 65, 68},
	5: {40, 3600, 700, 60, 63},
	6: {45, 4000, 800, 55, 58},
	7: {50, 4400, 900, 50, 53},
	8: {55, 4800, 1000, 45, 48},
	9: {60, 5200, 1100, 40, 43},
}

var drawSeeds = map[int][12]int{
	// triple, apple, orange, lemon, bell, melon, twin_star, ninety_nine,
	// bar_small, bar_mid, bar_big, jackpot_entry
	1: {6300, 800, 600, 460, 370, 370, 320, 260, 185, 140, 95, 100},
	2: {6200, 850, 650, 510, 420, 420, 350, 280, 205, 155, 100, 100},
	3: {6100, 900, 700, 560, 470, 470, 380, 300, 225, 170, 110, 100},
	4: {6000, 950, 750, 610, 520, 520, 410, 320, 245, 185, 120, 100},
	5: {5400, 920, 730, 600, 520, 520, 400, 310, 240, 180, 120, 80},
	6: {5350, 960, 780, 650, 570, 570, 430, 330, 260, 195, 130, 85},
	7: {5300, 1000, 830, 700, 620, 620, 460, 350, 280, 210, 140, 90},
	8: {5250, 1050, 880, 750, 670, 670, 490, 370, 300, 225, 150, 95},
	9: {4700, 1000, 850, 730, 650, 650, 470, 350, 290, 220, 150, 90},
}

var bonusSeeds = map[int][10]int{
	// double_shot, big_four, small_three, big_three, bonus_pool, train,
	// all_win, grand_slam, scatter, morph
	1: {1100, 1000, 900, 800, 700, 600, 500, 400, 400, 2600},
	2: {1050, 950, 850, 750, 650, 550, 450, 350, 350, 2500},
	3: {1000, 900, 800, 700, 600, 500, 400, 300, 300, 2400},
	4: {950, 850, 750, 650, 550, 450, 350, 250, 250, 2300},
	5: {1200, 1100, 1000, 900, 800, 700, 600, 300, 200, 3200},
	6: {1150, 1050, 950, 850, 750, 650, 550, 250, 150, 3000},
	7: {1100, 1000, 900, 800, 700, 600, 500, 200, 100, 2800},
	8: {1050, 950, 850, 750, 650, 550, 450, 150, 50, 2600},
	9: {1200, 1100, 1000, 900, 800, 700, 600, 300, 200, 3000},
}

// Defaults builds the shipped profile set: seed tables for every level,
// expanded and normalized so both distributions sum to DistributionTotal.
func Defaults() Set {
	seeds := make(Set, MaxLevel)
	for level := MinLevel; level <= MaxLevel; level++ {
		t := make(Table, len(BaseFields)+len(DrawFields)+len(BonusFields))
		for i, f := range BaseFields {
			t[f] = baseSeeds[level][i]
		}
		for i, f := range DrawFields {
			t[f] = drawSeeds[level][i]
		}
		for i, f := range BonusFields {
			t[f] = bonusSeeds[level][i]
		}
		seeds[level] = t
	}

	set, err := Expand(seeds)
	if err != nil {
		// Seeds are complete; Expand cannot fail on them.
		panic(err)
	}
	for _, t := range set {
		Normalize(t)
	}
	return set
}
