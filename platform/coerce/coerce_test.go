package coerce

import "testing"

func TestFirstPrefersEarlierCandidates(t *testing.T) {
	cases := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"nested wins over flat", []string{"Jean Bosco", "legacy name"}, "Jean Bosco"},
		{"falls back to flat", []string{"", "legacy name"}, "legacy name"},
		{"whitespace is blank", []string{"   ", "\t", "third"}, "third"},
		{"trims the winner", []string{"  0788 123 456  "}, "0788 123 456"},
		{"all blank", []string{"", "  "}, ""},
		{"no candidates", nil, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := First(tc.candidates...); got != tc.want {
				t.Errorf("First(%v) = %q, want %q", tc.candidates, got, tc.want)
			}
		})
	}
}

func TestMarkers(t *testing.T) {
	if got := NA("", " "); got != "N/A" {
		t.Errorf("NA on blanks = %q, want N/A", got)
	}
	if got := Unknown(""); got != "Unknown" {
		t.Errorf("Unknown on blank = %q, want Unknown", got)
	}
	if got := NA("", "a@b.rw"); got != "a@b.rw" {
		t.Errorf("NA with value = %q, want a@b.rw", got)
	}
}

func TestDeref(t *testing.T) {
	if Deref(nil) != "" {
		t.Error("Deref(nil) should be empty")
	}
	v := "x"
	if Deref(&v) != "x" {
		t.Error("Deref should return pointed-to value")
	}
}
