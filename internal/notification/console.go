package notification

import (
	"context"
	"log"
)

// ConsoleChannel writes alert messages to the process log, the
// development-friendly default channel (modeled on the teacher's
// LogNotifier).
type ConsoleChannel struct{}

func NewConsoleChannel() *ConsoleChannel { return &ConsoleChannel{} }

func (c *ConsoleChannel) Name() string { return "console" }

func (c *ConsoleChannel) Send(ctx context.Context, message string) error {
	log.Printf("[alert] %s", message)
	return nil
}
