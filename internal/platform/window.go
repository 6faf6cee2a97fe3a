// Package platform opens and focuses the application window using the host's
// URL handler.
package platform

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// Browser opens URLs in the user's default browser. Focus re-opens AppURL,
// which raises an existing tab in most browsers.
type Browser struct {
	AppURL string

	// swapped in tests
	run func(ctx context.Context, name string, args ...string) error
}

func NewBrowser(appURL string) *Browser {
	return &Browser{AppURL: appURL, run: runCommand}
}

func (b *Browser) Open(ctx context.Context, url string) error {
	name, args, err := openCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	return b.run(ctx, name, args...)
}

func (b *Browser) Focus(ctx context.Context) error {
	return b.Open(ctx, b.AppURL)
}

func openCommand(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	}
	return "", nil, fmt.Errorf("open url: unsupported platform %s", goos)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	// The handler may keep running; only the launch is awaited.
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
