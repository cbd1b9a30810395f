package services

import "testing"

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2", "1.2.0", 0},
		{"1.9", "1.10", -1},
		{"1.10", "1.9", 1},
		{"2.0.0", "1.99.99", 1},
		{"0.9", "1.0", -1},
		{"1.0.1", "1.0", 1},
		{"", "0.0.0", 0},
		{"1.x.0", "1.0.0", 0},
		{" 1.2 ", "1.2", 0},
	}

	for _, c := range cases {
		if got := CompareVersions(c.a, c.b); got != c.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
