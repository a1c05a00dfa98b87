package note

import "testing"

func TestFreq(t *testing.T) {
	golden := []struct {
		n    uint8
		want uint16
	}{
		{n: 0, want: 8},
		{n: 57, want: 220},
		{n: 60, want: 262},
		{n: 67, want: 392},
		{n: 69, want: 440},
		{n: 72, want: 523},
		{n: 81, want: 880},
		{n: 127, want: 12544},
	}
	for _, g := range golden {
		if got := Freq(g.n); got != g.want {
			t.Errorf("result mismatch of Freq(%d); expected %d, got %d", g.n, g.want, got)
		}
	}
}

func TestName(t *testing.T) {
	golden := []struct {
		n    uint8
		want string
	}{
		{n: 0, want: "C-1"},
		{n: 21, want: "A0"},
		{n: 60, want: "C4"},
		{n: 61, want: "C#4"},
		{n: 69, want: "A4"},
		{n: 127, want: "G9"},
	}
	for _, g := range golden {
		if got := Name(g.n); got != g.want {
			t.Errorf("result mismatch of Name(%d); expected %q, got %q", g.n, g.want, got)
		}
	}
}
