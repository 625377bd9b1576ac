package encoder

import "streamcast/models"

type ladderTier struct {
	minWidth, minHeight int
	ladder              models.BitrateLadder
}

// Tiers are checked top-down; both dimensions must reach the floor.
var ladderTiers = []ladderTier{
	{1920, 1080, models.BitrateLadder{Low: 1000, Medium: 2500, High: 5000}},
	{1280, 720, models.BitrateLadder{Low: 800, Medium: 1500, High: 3000}},
	{854, 480, models.BitrateLadder{Low: 600, Medium: 1000, High: 2000}},
}

var baseLadder = models.BitrateLadder{Low: 400, Medium: 800, High: 1500}

// Ladder returns the kbps rungs for a source of the given dimensions.
func Ladder(width, height int) models.BitrateLadder {
	for _, tier := range ladderTiers {
		if width >= tier.minWidth && height >= tier.minHeight {
			return tier.ladder
		}
	}
	return baseLadder
}
