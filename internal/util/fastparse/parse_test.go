package fastparse

import "testing"

func TestParseNonNegative(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"65000.5", 65000.5, false},
		{"0", 0, false},
		{"-1", 0, true},
		{"NaN", 0, true},
		{"+Inf", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseNonNegative(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseNonNegative(%q) err=%v, wantErr=%v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseNonNegative(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDecimalPlaces(t *testing.T) {
	cases := map[string]int{
		"0.0001":  4,
		"1":       0,
		"0.10":    1,
		"0.001":   3,
		" 0.01 ":  2,
		"10":      0,
		"0.00000": 0,
	}
	for in, want := range cases {
		if got := DecimalPlaces(in); got != want {
			t.Errorf("DecimalPlaces(%q)=%d, want %d", in, got, want)
		}
	}
}

func TestMustParseFloat(t *testing.T) {
	if MustParseFloat("1.25") != 1.25 {
		t.Fatalf("MustParseFloat(1.25)")
	}
	if MustParseFloat("x") != 0 {
		t.Fatalf("非法输入应返回 0")
	}
}
