package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClickFunc runs when the user clicks a notification shown through a Center.
type ClickFunc func(ctx context.Context)

// Shown describes an active notification.
type Shown struct {
	ID uuid.UUID `json:"id"`
	Notification
	ShownAt time.Time `json:"shown_at"`
}

type entry struct {
	shown   Shown
	onClick ClickFunc
}

// Center keeps the notifications that are on screen, keyed by tag, together
// with their click handlers.
type Center struct {
	log    *zap.Logger
	sender Notifier
	now    func() time.Time

	mu     sync.Mutex
	active map[string]*entry
}

func NewCenter(log *zap.Logger, sender Notifier) *Center {
	return &Center{
		log:    log,
		sender: sender,
		now:    time.Now,
		active: make(map[string]*entry),
	}
}

// Show delivers n and records it under its tag, replacing any notification
// with the same tag. The record is kept even when delivery fails so that a
// click can still be routed.
func (c *Center) Show(ctx context.Context, n Notification, onClick ClickFunc) (Shown, error) {
	s := Shown{ID: uuid.New(), Notification: n, ShownAt: c.now()}

	c.mu.Lock()
	_, replaced := c.active[n.Tag]
	c.active[n.Tag] = &entry{shown: s, onClick: onClick}
	c.mu.Unlock()

	if replaced {
		c.log.Debug("notification_replaced", zap.String("tag", n.Tag))
	}

	var err error
	if c.sender != nil {
		err = c.sender.Send(ctx, n)
	}
	return s, err
}

// Close removes the notification with tag. It reports whether one was active.
func (c *Center) Close(tag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[tag]
	delete(c.active, tag)
	return ok
}

// Click closes the notification with tag and runs its handler. It reports
// whether a handler ran.
func (c *Center) Click(ctx context.Context, tag string) bool {
	c.mu.Lock()
	e, ok := c.active[tag]
	delete(c.active, tag)
	c.mu.Unlock()

	if !ok || e.onClick == nil {
		return false
	}
	e.onClick(ctx)
	return true
}

// Active lists the notifications on screen, oldest first.
func (c *Center) Active() []Shown {
	c.mu.Lock()
	out := make([]Shown, 0, len(c.active))
	for _, e := range c.active {
		out = append(out, e.shown)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ShownAt.Before(out[j].ShownAt) })
	return out
}
