package units

import (
	"errors"
	"strings"
	"testing"

	"github.com/holiman/uint256"
)

func TestParseEther(t *testing.T) {
	cases := map[string]string{
		"10":    "10000000000000000000",
		"5":     "5000000000000000000",
		"4.999": "4999000000000000000",
		"5.45":  "5450000000000000000",
		"0":     "0",
		"0.000000000000000001": "1",
	}
	for in, want := range cases {
		got, err := ParseEther(in)
		if err != nil {
			t.Fatalf("ParseEther(%q): %v", in, err)
		}
		if got.Dec() != want {
			t.Fatalf("ParseEther(%q) = %s, want %s", in, got.Dec(), want)
		}
	}
}

func TestParseEther_Rejects(t *testing.T) {
	if _, err := ParseEther("-1"); !errors.Is(err, ErrNegative) {
		t.Fatalf("negative: got %v", err)
	}
	if _, err := ParseEther("0.0000000000000000001"); !errors.Is(err, ErrPrecision) {
		t.Fatalf("19 decimals: got %v", err)
	}
	if _, err := ParseEther("1" + strings.Repeat("0", 80)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("huge: got %v", err)
	}
	if _, err := ParseEther("abc"); err == nil {
		t.Fatal("garbage: want error")
	}
}

func TestFormatEther(t *testing.T) {
	if got := FormatEther(uint256.MustFromDecimal("5450000000000000000")); got != "5.45" {
		t.Fatalf("FormatEther = %q, want 5.45", got)
	}
	if got := FormatEther(uint256.NewInt(1)); got != "0.000000000000000001" {
		t.Fatalf("FormatEther(1 wei) = %q", got)
	}
	if got := FormatEther(nil); got != "0" {
		t.Fatalf("FormatEther(nil) = %q", got)
	}
}

func TestParseWei(t *testing.T) {
	v, err := ParseWei(" 42 ")
	if err != nil || v.Uint64() != 42 {
		t.Fatalf("ParseWei: v=%v err=%v", v, err)
	}
	if _, err := ParseWei("4.2"); err == nil {
		t.Fatal("fractional wei: want error")
	}
}
