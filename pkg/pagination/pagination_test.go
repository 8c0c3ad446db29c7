package pagination

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{At: time.Date(2026, 3, 1, 18, 30, 0, 123456789, time.UTC), ID: uuid.New()}
	encoded := EncodeCursor(in)
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("cursor must be URL safe, got %q", encoded)
	}
	out, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.At.Equal(in.At) || out.ID != in.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestParseCursorBlankAndInvalid(t *testing.T) {
	if c, err := ParseCursor("  "); c != nil || err != nil {
		t.Fatalf("blank cursor should be nil, got %+v %v", c, err)
	}
	for _, bad := range []string{"!!!", "bm8tcGlwZQ", "MjAyNnxub3QtYS11dWlk"} {
		if _, err := ParseCursor(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, 1000: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if LimitWithBuffer(10) != 11 {
		t.Fatalf("buffer should add one row")
	}
}
