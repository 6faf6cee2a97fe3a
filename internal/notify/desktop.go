package notify

import (
	"context"

	"github.com/gen2brain/beeep"
)

// Desktop shows notifications through the operating system's notification
// service. Persistent notifications use beeep.Alert, which also rings.
type Desktop struct {
	AppName string
	Icon    string

	// swapped in tests
	notify func(title, message string, icon any) error
	alert  func(title, message string, icon any) error
}

func NewDesktop(appName string) *Desktop {
	if appName != "" {
		beeep.AppName = appName
	}
	return &Desktop{
		AppName: appName,
		notify:  beeep.Notify,
		alert:   beeep.Alert,
	}
}

func (d *Desktop) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.RequireInteraction {
		return d.alert(n.Title, n.Body, d.Icon)
	}
	return d.notify(n.Title, n.Body, d.Icon)
}
