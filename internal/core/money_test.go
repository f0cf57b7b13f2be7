package core

import (
	"testing"
	"time"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"0", 0, true},
		{"1,000", 100000, true},
		{"1,00,000.50", 10000050, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"₹500", 50000, true},
		{"Rs.500/-", 50000, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseDecimalToCents(t *testing.T) {
	if _, err := ParseDecimalToCents("0"); err == nil {
		t.Fatalf("zero should be rejected")
	}
	got, err := ParseDecimalToCents("250.75")
	if err != nil || got != 25075 {
		t.Fatalf("expected 25075, got %d (err=%v)", got, err)
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := []struct {
		in   Money
		want string
	}{
		{Money{}, "₹0.00"},
		{Rupees(50), "₹50.00"},
		{Rupees(1000), "₹1,000.00"},
		{Money{Cents: 123456}, "₹1,234.56"},
		{Money{Cents: -5000}, "-₹50.00"},
	}
	for _, tc := range cases {
		if got := tc.in.Format(); got != tc.want {
			t.Fatalf("%d: expected %q, got %q", tc.in.Cents, tc.want, got)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	m := Rupees(100).Add(Money{Cents: 50}).Sub(Rupees(1))
	if m.Cents != 9950 {
		t.Fatalf("got %d", m.Cents)
	}
	if Rupees(150).Times(3) != Rupees(450) {
		t.Fatalf("times")
	}
	if got := (Money{Cents: 150050}).String(); got != "1500.50" {
		t.Fatalf("got %q", got)
	}
}

func TestMonthKeyParse(t *testing.T) {
	want := MonthKey{Year: 2024, Month: time.March}
	for _, s := range []string{"Mar 24", "Mar-24", "mar-24", "March 2024", "2024-03", " Mar 24 "} {
		got, err := ParseMonthKey(s)
		if err != nil || got != want {
			t.Fatalf("%q expected %v, got %v (err=%v)", s, want, got, err)
		}
	}
	for _, s := range []string{"", "Mar", "Foo 24", "Mar 2", "Mar 02024", "13/2024"} {
		if _, err := ParseMonthKey(s); err == nil {
			t.Fatalf("%q expected error", s)
		}
	}
}

func TestMonthKeyLabels(t *testing.T) {
	k := MonthKey{Year: 2024, Month: time.March}
	if k.Label() != "Mar 24" {
		t.Fatalf("got %q", k.Label())
	}
	if k.PaidLabel() != "Mar-24" {
		t.Fatalf("got %q", k.PaidLabel())
	}
	if k.FullName() != "March 2024" {
		t.Fatalf("got %q", k.FullName())
	}
	if (MonthKey{Year: 2005, Month: time.January}).Label() != "Jan 05" {
		t.Fatalf("year should be zero padded")
	}
}

func TestMonthKeyLabelsOfUnsetMonth(t *testing.T) {
	for _, k := range []MonthKey{{}, {Year: 2024, Month: 13}} {
		if k.Label() != "" || k.PaidLabel() != "" || k.FullName() != "" || k.String() != "" {
			t.Fatalf("%#v: want empty labels, got %q %q %q", k, k.Label(), k.PaidLabel(), k.FullName())
		}
	}
}

func TestMonthKeyOrdering(t *testing.T) {
	dec24 := MonthKey{Year: 2024, Month: time.December}
	jan25 := MonthKey{Year: 2025, Month: time.January}
	if !dec24.Before(jan25) || jan25.Before(dec24) {
		t.Fatalf("December 2024 must precede January 2025")
	}
	if dec24.Next() != jan25 || jan25.Prev() != dec24 {
		t.Fatalf("next/prev should cross the year boundary")
	}
	if dec24.Compare(dec24) != 0 {
		t.Fatalf("compare to self")
	}
	if MonthOf(NewDate(2024, 12, 31)) != dec24 {
		t.Fatalf("month of")
	}
}
