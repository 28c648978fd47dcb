package notify

import (
	"context"
	"fmt"
	"strings"
)

// CompositeSender delegates delivery to multiple Senders, so a deployment can
// both log and store (or log and send) every message.
type CompositeSender struct {
	senders []Sender
}

// NewCompositeSender returns the concrete type so AddSender can be called on
// it directly.
func NewCompositeSender(senders ...Sender) *CompositeSender {
	return &CompositeSender{senders: senders}
}

func (cs *CompositeSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

// Send calls every registered sender and collects the failures into one
// error.
func (cs *CompositeSender) Send(ctx context.Context, to string, message string) error {
	if len(cs.senders) == 0 {
		return fmt.Errorf("no senders configured in CompositeSender")
	}

	var allErrors []string
	for _, sender := range cs.senders {
		if err := sender.Send(ctx, to, message); err != nil {
			allErrors = append(allErrors, err.Error())
		}
	}

	if len(allErrors) > 0 {
		return fmt.Errorf("composite send failed: [ %s ]", strings.Join(allErrors, "; "))
	}
	return nil
}
