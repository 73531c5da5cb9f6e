package fees

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTopicFraction(t *testing.T) {
	m := Topic{Rate: 0.08, MinFeeUSD: 0.5}
	tests := []struct {
		name     string
		price    float64
		notional float64
		want     float64
	}{
		{name: "min fee dominates small notional", price: 0.5, notional: 10, want: 0.05},
		{name: "rate dominates large notional", price: 0.5, notional: 1000, want: 0.02},
		{name: "zero notional", price: 0.5, notional: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Fraction(tt.price, tt.notional); !approx(got, tt.want) {
				t.Fatalf("Fraction = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKalshiFractionRoundsUpToCent(t *testing.T) {
	m := Kalshi{Rate: 0.07}
	// 100 contracts at 0.40: 0.07*100*0.4*0.6 = 1.68 exactly
	if got := m.Fraction(0.40, 40); !approx(got, 1.68/40) {
		t.Fatalf("Fraction = %v, want %v", got, 1.68/40)
	}
	// 1 contract at 0.50: 0.0175 -> 0.02
	if got := m.Fraction(0.50, 0.5); !approx(got, 0.02/0.5) {
		t.Fatalf("Fraction = %v, want %v", got, 0.02/0.5)
	}
	if got := m.Fraction(0, 10); got != 0 {
		t.Fatalf("zero price fraction = %v", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Model
		wantErr bool
	}{
		{in: "zero", want: Zero{}},
		{in: "", want: Zero{}},
		{in: "topic", want: Topic{Rate: 0.08, MinFeeUSD: 0.5}},
		{in: "topic:0.1:0", want: Topic{Rate: 0.1, MinFeeUSD: 0}},
		{in: "kalshi", want: Kalshi{Rate: 0.07}},
		{in: "FLAT:0.02", want: Flat{Rate: 0.02}},
		{in: "flat", wantErr: true},
		{in: "flat:1.5", wantErr: true},
		{in: "topic:x", wantErr: true},
		{in: "zero:1", wantErr: true},
		{in: "maker", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
