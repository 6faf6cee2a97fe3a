package notify

import (
	"context"

	"go.uber.org/multierr"
)

// Notification is one alarm alert. Tag de-duplicates: showing a notification
// with the tag of an active one replaces it.
type Notification struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	Tag                string `json:"tag"`
	RequireInteraction bool   `json:"require_interaction"`
}

type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

type Multi []Notifier

// Send delivers to every notifier and returns the combined errors.
func (m Multi) Send(ctx context.Context, n Notification) error {
	var err error
	for _, nt := range m {
		if nt == nil {
			continue
		}
		err = multierr.Append(err, nt.Send(ctx, n))
	}
	return err
}
