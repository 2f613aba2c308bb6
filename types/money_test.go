package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"EUR", EUR(19900), 19900, "eur", "€199.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"ETH one", ETH(1_000_000_000), 1_000_000_000, "eth", "Ξ1.000000000"},
		{"ETH thousand", ETH(1_000_000_000_000), 1_000_000_000_000, "eth", "Ξ1000.000000000"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
		{"Unknown currency", Money{Amount: 150, Currency: "chf"}, 150, "chf", "CHF 1.50"},
		{"No currency", Money{}, 0, "", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyEqual(t *testing.T) {
	price := USD(1000)

	tests := []struct {
		name    string
		payment Money
		want    bool
	}{
		{"exact", USD(1000), true},
		{"underpay", USD(999), false},
		{"overpay", USD(1001), false},
		{"other currency", EUR(1000), false},
		{"case-insensitive code", Money{Amount: 1000, Currency: "USD"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := price.Equal(tt.payment); got != tt.want {
				t.Errorf("Equal(%v) = %v, want %v", tt.payment, got, tt.want)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	if got := USD(100).Add(USD(200)); !got.Equal(USD(300)) {
		t.Errorf("Add: got %v", got)
	}
	if got := USD(500).Subtract(USD(200)); !got.Equal(USD(300)) {
		t.Errorf("Subtract: got %v", got)
	}
	if got := USD(100).Subtract(USD(300)); !got.IsNegative() {
		t.Errorf("Subtract below zero should be negative, got %v", got)
	}
}

func TestMoneyCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on currency mismatch")
		}
	}()
	_ = USD(100).Add(EUR(100))
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money Money
		want  string
	}{
		{USD(0), "0.00"},
		{USD(5), "0.05"},
		{USD(-250), "-2.50"},
		{Money{Amount: 100, Currency: "jpy"}, "100"},
		{ETH(1), "0.000000001"},
	}

	for _, tt := range tests {
		if got := tt.money.FormatMajor(); got != tt.want {
			t.Errorf("FormatMajor(%d %s) = %q, want %q", tt.money.Amount, tt.money.Currency, got, tt.want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(4900))
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["display"] != "$49.00" {
		t.Errorf("display = %v, want $49.00", decoded["display"])
	}

	var m Money
	if err := json.Unmarshal([]byte(`{"amount":250,"currency":"EUR"}`), &m); err != nil {
		t.Fatal(err)
	}
	if !m.Equal(EUR(250)) || m.Currency != "eur" {
		t.Errorf("UnmarshalJSON: got %+v", m)
	}
}
