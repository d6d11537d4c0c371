package models

import "strconv"

// FormatPercent renders a stored [0,1] fraction for display, e.g. 0.423 ->
// "42.3%". Display only; parsing it back is not supported.
func FormatPercent(fraction float64) string {
	return strconv.FormatFloat(fraction*100, 'f', 1, 64) + "%"
}
