package domain

import "testing"

func TestDisplayName(t *testing.T) {
	name := "Foo"
	empty := ""

	cases := []struct {
		username *string
		id       int64
		want     string
	}{
		{&name, 1, "@Foo"},
		{&empty, 2, "ID: 2"},
		{nil, 3, "ID: 3"},
	}

	for _, tc := range cases {
		if got := DisplayName(tc.username, tc.id); got != tc.want {
			t.Fatalf("DisplayName(%v, %d) = %q; want %q", tc.username, tc.id, got, tc.want)
		}
	}
}
