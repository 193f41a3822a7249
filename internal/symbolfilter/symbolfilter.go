// Package symbolfilter gates which (exchange, symbol) pairs the pipeline
// accepts, built once from configuration and consulted in-process on
// every tick with no I/O.
package symbolfilter

import "strings"

// Filter is a case-insensitive (exchange, symbol) allow-list.
type Filter struct {
	allowed map[string]struct{}
}

// New builds a Filter from a per-exchange symbol list, as loaded from
// the Exchanges section of configuration.
func New(exchangeSymbols map[string][]string) *Filter {
	allowed := make(map[string]struct{})
	for exchange, symbols := range exchangeSymbols {
		for _, symbol := range symbols {
			allowed[key(exchange, symbol)] = struct{}{}
		}
	}
	return &Filter{allowed: allowed}
}

// Allows reports whether the given exchange/symbol pair is in the
// allow-list. An empty Filter (no configured symbols) allows nothing.
func (f *Filter) Allows(exchange, symbol string) bool {
	_, ok := f.allowed[key(exchange, symbol)]
	return ok
}

func key(exchange, symbol string) string {
	return strings.ToUpper(exchange) + ":" + strings.ToUpper(symbol)
}
