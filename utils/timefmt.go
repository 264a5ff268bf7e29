package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SecsToStr formats seconds as "MM:SS", or "MM:SS.mmm" when showMs is set.
func SecsToStr(secs float64, showMs bool) string {
	sign := ""
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	mins := math.Floor(secs / 60)
	rem := secs - mins*60
	if showMs {
		return fmt.Sprintf("%s%02d:%06.3f", sign, int(mins), rem)
	}
	return fmt.Sprintf("%s%02d:%02d", sign, int(mins), int(rem))
}

// MsToStr formats milliseconds the same way as SecsToStr.
func MsToStr(ms int64, showMs bool) string {
	return SecsToStr(float64(ms)/1000.0, showMs)
}

// StrToMs parses "MM:SS" or "MM:SS.mmm" into milliseconds. Anything it cannot
// parse is treated as 0, matching how plans have always been loaded.
func StrToMs(s string) int64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0
	}
	mins, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	secs, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0
	}
	return int64(mins)*60*1000 + int64(secs*1000)
}
