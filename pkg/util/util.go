package util

import (
	"math"
	"regexp"
	"strconv"
)

// WeeksScale is the closed set of project durations, in weeks, ascending.
var WeeksScale = []float64{0.5, 1, 1.5, 2, 3, 4, 6, 8, 10, 12, 16, 20, 24}

// QuarterHour is the smallest task estimate ever written for a positive guess.
const QuarterHour = 0.25

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// FirstNumber extracts the first integer or decimal token from s.
func FirstNumber(s string) (float64, bool) {
	tok := numberRe.FindString(s)
	if tok == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Quantize snaps raw to the scale entry with the smallest absolute distance.
// scale must be ascending; on a tie the lower entry wins.
func Quantize(raw float64, scale []float64) float64 {
	if len(scale) == 0 {
		return raw
	}
	best := scale[0]
	bestDist := math.Abs(raw - best)
	for _, v := range scale[1:] {
		if d := math.Abs(raw - v); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}

// MinutesToHours converts a minutes estimate to hours rounded to the nearest
// quarter hour. A positive estimate never rounds down to zero.
func MinutesToHours(minutes float64) float64 {
	hours := math.Round(minutes/60*4) / 4
	if hours == 0 && minutes > 0 {
		return QuarterHour
	}
	return hours
}
