package notification

import (
	"context"
	"log"
)

// EmailStubChannel logs what would be emailed instead of sending,
// parallel to the teacher's LogNotifier for the telegram/webhook
// backends it didn't stand up in-repo.
type EmailStubChannel struct {
	to string
}

func NewEmailStubChannel(to string) *EmailStubChannel {
	return &EmailStubChannel{to: to}
}

func (c *EmailStubChannel) Name() string { return "email" }

func (c *EmailStubChannel) Send(ctx context.Context, message string) error {
	log.Printf("[email-stub] would send to %s: %s", c.to, message)
	return nil
}
