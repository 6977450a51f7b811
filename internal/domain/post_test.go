package domain

import "testing"

func TestParsePostLink(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"https://t.me/c/1234567890/321", 321, true},
		{"t.me/my_channel/77", 77, true},
		{"  15 ", 15, true},
		{"https://t.me/c/abc", 0, false},
		{"zero", 0, false},
		{"0", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParsePostLink(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParsePostLink(%q) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
