package playback

import (
	"regexp"
	"strconv"
)

// Players print progress timers in a few textual shapes. We scan every
// output line for a total-duration hint and report the largest plausible
// value found; lines that don't match (including binary noise) are ignored.
//
//	mplayer:  A:  12.3 (12.2) of 183.0 (03:03.0)  0.5%
//	ffplay:   Duration: 00:03:03.50, start: 0.000000
//	afinfo:   estimated duration: 183.05 s
var (
	clockPattern   = regexp.MustCompile(`(\d{1,2}):(\d{2}):(\d{2})(?:\.(\d+))?`)
	ofPattern      = regexp.MustCompile(`of\s+(\d+(?:\.\d+)?)`)
	secondsPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s?s\b`)
)

// maxPlausibleDuration rejects garbage parses; nothing in a home library
// runs for a full day.
const maxPlausibleDuration = 24 * 60 * 60

// ParseDurationHint scans one line of player output for a duration value in
// seconds. It returns the largest plausible match and whether one was found.
func ParseDurationHint(line string) (float64, bool) {
	var best float64

	for _, m := range clockPattern.FindAllStringSubmatch(line, -1) {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		sec, _ := strconv.Atoi(m[3])
		secs := float64(h)*3600 + float64(min)*60 + float64(sec)
		if m[4] != "" {
			if frac, err := strconv.ParseFloat("0."+m[4], 64); err == nil {
				secs += frac
			}
		}
		if secs > best {
			best = secs
		}
	}

	for _, m := range ofPattern.FindAllStringSubmatch(line, -1) {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil && secs > best {
			best = secs
		}
	}

	for _, m := range secondsPattern.FindAllStringSubmatch(line, -1) {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil && secs > best {
			best = secs
		}
	}

	if best <= 0 || best > maxPlausibleDuration {
		return 0, false
	}
	return best, true
}
