/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package internal

import (
	"testing"
)

func TestScoreToString(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{0.5, "½"},
		{1, "1"},
		{1.5, "1½"},
		{2, "2"},
		{10.5, "10½"},
	}
	for _, c := range cases {
		if got := ScoreToString(c.in); got != c.want {
			t.Errorf("ScoreToString(%v) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 8: 8, 9: 16,
		4097: 8192, 8192: 8192}
	for in, want := range cases {
		if got := NextPowerOfTwo(in); got != want {
			t.Errorf("NextPowerOfTwo(%v) = %v; want %v", in, got, want)
		}
		if got := 1 << Log2(want); got != want {
			t.Errorf("Log2(%v) inconsistent: 1<<%v = %v", want, Log2(want), got)
		}
	}
}

func TestParseDateOrZero(t *testing.T) {
	for _, s := range []string{"", "null"} {
		d, err := ParseDateOrZero(s)
		if err != nil || !d.IsZero() {
			t.Errorf("ParseDateOrZero(%q) = %v, %v; want zero, nil", s, d, err)
		}
	}

	d, err := ParseDateOrZero("2026-03-01T18:00:00Z")
	if err != nil {
		t.Fatalf("ParseDateOrZero returned error: %v", err)
	}
	if d.Hour() != 18 || d.Month() != 3 {
		t.Errorf("unexpected parse result %v", d)
	}
}
