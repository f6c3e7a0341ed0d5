package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyJSONKeepsCentScale(t *testing.T) {
	cases := []struct {
		amount string
		want   string
	}{
		{"2015", `{"currency":"EUR","amount":"2015.00"}`},
		{"96.5", `{"currency":"EUR","amount":"96.50"}`},
		{"0.005", `{"currency":"EUR","amount":"0.01"}`},
		{"-4", `{"currency":"EUR","amount":"-4.00"}`},
	}
	for _, c := range cases {
		m := NewMoney("EUR", decimal.RequireFromString(c.amount))
		got, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal %s: %v", c.amount, err)
		}
		if string(got) != c.want {
			t.Fatalf("amount %s: got %s, want %s", c.amount, got, c.want)
		}
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	in := NewMoney("EUR", decimal.RequireFromString("1234.50"))
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Money
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Currency != in.Currency || !out.Amount.Equal(in.Amount) {
		t.Fatalf("round trip changed value: %+v -> %+v", in, out)
	}

	var bad Money
	if err := json.Unmarshal([]byte(`{"currency":"EUR","amount":"abc"}`), &bad); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}
