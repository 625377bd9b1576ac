package models

import "fmt"

// DefaultBitrateBps is used when the container does not report a bitrate.
const DefaultBitrateBps int64 = 5_000_000

// Fraction is a rational frame rate such as 30000/1001.
type Fraction struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

// Float returns the fraction as a float64, or 0 for a zero denominator.
func (f Fraction) Float() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// VideoMetadata is probed once per job and read-only afterwards.
type VideoMetadata struct {
	DurationSeconds float64  `json:"duration"`
	Width           int      `json:"width"`
	Height          int      `json:"height"`
	BitrateBps      int64    `json:"bitrate"`
	HasAudio        bool     `json:"has_audio"`
	FrameRate       Fraction `json:"framerate"`
}

// BitrateLadder holds the adaptive bitrate rungs in kbps.
type BitrateLadder struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}
