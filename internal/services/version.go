package services

import (
	"strconv"
	"strings"
)

// CompareVersions compares two dot-separated version strings numerically per
// segment. It returns -1, 0, or 1 as a is less than, equal to, or greater
// than b. Missing segments compare as zero, so "1.2" equals "1.2.0".
// Non-numeric segments compare as zero.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(strings.TrimSpace(as[i]))
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(strings.TrimSpace(bs[i]))
		}
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}
