package timestamp

import (
	"math"
	"testing"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00:00.000"},
		{3661.5, "1:01:01.500"},
		{59.9994, "0:00:59.999"},
		{59.9996, "0:01:00.000"},
		{7322.25, "2:02:02.250"},
		{360000, "100:00:00.000"},
		{-1, "0:00:00.000"},
	}

	for _, c := range cases {
		if got := Format(c.seconds); got != c.want {
			t.Errorf("Format(%v): got %q, want %q", c.seconds, got, c.want)
		}
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("1:01:01.500")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != 3661.5 {
		t.Errorf("Parse: got %v, want 3661.5", got)
	}

	if _, err := Parse("90.5"); err == nil {
		t.Error("Parse accepted a timestamp without colons")
	}
	if _, err := Parse("a:00:00.000"); err == nil {
		t.Error("Parse accepted non-numeric hours")
	}
}

func TestRoundTrip(t *testing.T) {
	for _, seconds := range []float64{0, 0.001, 1.5, 59.999, 3661.5, 86399.123, 123456.789} {
		back, err := Parse(Format(seconds))
		if err != nil {
			t.Fatalf("round trip %v: %v", seconds, err)
		}
		if math.Abs(back-seconds) > 0.0005 {
			t.Errorf("round trip %v: got %v", seconds, back)
		}
	}
}
