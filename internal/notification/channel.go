// Package notification delivers fired-alert messages to configured
// channels. Every channel implements the same Name/Send contract so
// the alert engine can fan a single message out to all of them
// uniformly.
package notification

import "context"

// Channel is one notification backend. Send delivers message; a
// channel's own failures are logged by the caller and never abort
// sends to other channels.
type Channel interface {
	Name() string
	Send(ctx context.Context, message string) error
}
