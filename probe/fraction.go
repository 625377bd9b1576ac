package probe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"streamcast/models"
)

// ErrInvalidFraction is returned for frame rates that are not "N/D" with
// integer components and a non-zero denominator.
var ErrInvalidFraction = errors.New("invalid frame rate fraction")

// ParseFraction parses an ffprobe rate string such as "30000/1001". A bare
// integer is accepted as N/1. The text is never evaluated.
func ParseFraction(s string) (models.Fraction, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Fraction{}, fmt.Errorf("%w: empty", ErrInvalidFraction)
	}
	numStr, denStr, found := strings.Cut(s, "/")
	if !found {
		denStr = "1"
	}
	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return models.Fraction{}, fmt.Errorf("%w: %q", ErrInvalidFraction, s)
	}
	den, err := strconv.ParseInt(strings.TrimSpace(denStr), 10, 64)
	if err != nil {
		return models.Fraction{}, fmt.Errorf("%w: %q", ErrInvalidFraction, s)
	}
	if den <= 0 || num < 0 {
		return models.Fraction{}, fmt.Errorf("%w: %q", ErrInvalidFraction, s)
	}
	return models.Fraction{Num: num, Den: den}, nil
}
