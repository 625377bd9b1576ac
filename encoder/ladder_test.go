package encoder

import (
	"testing"

	"streamcast/models"
)

func TestLadderTiers(t *testing.T) {
	cases := []struct {
		w, h int
		want models.BitrateLadder
	}{
		{3840, 2160, models.BitrateLadder{Low: 1000, Medium: 2500, High: 5000}},
		{1920, 1080, models.BitrateLadder{Low: 1000, Medium: 2500, High: 5000}},
		{1920, 1079, models.BitrateLadder{Low: 800, Medium: 1500, High: 3000}},
		{1280, 720, models.BitrateLadder{Low: 800, Medium: 1500, High: 3000}},
		{1279, 720, models.BitrateLadder{Low: 600, Medium: 1000, High: 2000}},
		{854, 480, models.BitrateLadder{Low: 600, Medium: 1000, High: 2000}},
		{853, 480, models.BitrateLadder{Low: 400, Medium: 800, High: 1500}},
		{640, 360, models.BitrateLadder{Low: 400, Medium: 800, High: 1500}},
		{1080, 1920, models.BitrateLadder{Low: 600, Medium: 1000, High: 2000}},
	}
	for _, c := range cases {
		if got := Ladder(c.w, c.h); got != c.want {
			t.Errorf("Ladder(%d, %d) = %+v, want %+v", c.w, c.h, got, c.want)
		}
	}
}
