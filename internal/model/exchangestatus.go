package model

import "time"

// ExchangeStatus is the most recent connectivity snapshot for one
// (exchange, source type) feed, owned by the producing adapter and
// periodically snapshotted by the status loop.
type ExchangeStatus struct {
	Exchange   string
	SourceType SourceType
	IsOnline   bool
	LastTickAt time.Time
	LastError  string
	UpdatedAt  time.Time
}

// Key returns the unique (exchange, source type) identity.
func (s ExchangeStatus) Key() string {
	return s.Exchange + ":" + string(s.SourceType)
}
