package symbolfilter

import "testing"

func TestFilter_AllowsConfiguredPairsCaseInsensitively(t *testing.T) {
	f := New(map[string][]string{
		"Binance": {"btcusdt", "ETHUSDT"},
	})

	cases := []struct {
		exchange, symbol string
		want             bool
	}{
		{"binance", "BTCUSDT", true},
		{"BINANCE", "ethusdt", true},
		{"binance", "BNBUSDT", false},
		{"kraken", "BTCUSDT", false},
	}
	for _, tc := range cases {
		if got := f.Allows(tc.exchange, tc.symbol); got != tc.want {
			t.Errorf("Allows(%q, %q) = %v, want %v", tc.exchange, tc.symbol, got, tc.want)
		}
	}
}

func TestFilter_EmptyAllowsNothing(t *testing.T) {
	f := New(nil)
	if f.Allows("binance", "BTCUSDT") {
		t.Error("expected empty filter to allow nothing")
	}
}
