package bytesize

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Size
	}{
		{"1024", 1024 * Byte},
		{"1Gi", GiB},
		{"500Mi", 500 * MiB},
		{"100MB", 100 * MB},
		{"1.5Gi", Size(1.5 * float64(GiB))},
		{"  64 KiB  ", 64 * KiB},
		{"0", 0},
	}

	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "10Xi", "-5"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", in)
		}
	}
}

func TestUnmarshalText(t *testing.T) {
	var s Size
	if err := s.UnmarshalText([]byte("16Mi")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if s != 16*MiB {
		t.Errorf("got %d, want %d", s, 16*MiB)
	}
}

func TestString(t *testing.T) {
	cases := []struct {
		in   Size
		want string
	}{
		{512, "512B"},
		{2 * KiB, "2.00KiB"},
		{3 * MiB, "3.00MiB"},
		{GiB, "1.00GiB"},
	}
	for _, c := range cases {
		if got := c.in.String(); got != c.want {
			t.Errorf("Size(%d).String() = %q, want %q", uint64(c.in), got, c.want)
		}
	}
}
