package notify

import (
	"context"
	"log"
)

// Sender delivers a short WhatsApp message (verification codes) to an E.164
// number. The production implementation sits behind a messaging provider;
// development and tests use the logging/redis senders.
type Sender interface {
	Send(ctx context.Context, to string, message string) error
}

// LoggingSender writes the message to the process log instead of sending it.
type LoggingSender struct{}

func NewLoggingSender() Sender {
	return &LoggingSender{}
}

func (s *LoggingSender) Send(ctx context.Context, to string, message string) error {
	log.Printf("--- WhatsApp message (logged) ---")
	log.Printf("To: %s", to)
	log.Printf("Message: %s", message)
	log.Printf("--- End message ---")
	return nil
}
