package notify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

type PermissionState string

const (
	Granted PermissionState = "granted"
	Default PermissionState = "default"
	Denied  PermissionState = "denied"
)

// Permission gates notification display.
type Permission interface {
	State() PermissionState
	// Request asks the user and returns the resulting state. Only the default
	// state asks; granted and denied are final.
	Request(ctx context.Context) (PermissionState, error)
}

// StaticPermission starts in State and moves to Answer on Request.
type StaticPermission struct {
	mu     sync.Mutex
	state  PermissionState
	answer PermissionState
}

func NewStaticPermission(state, answer PermissionState) *StaticPermission {
	return &StaticPermission{state: state, answer: answer}
}

func (p *StaticPermission) State() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *StaticPermission) Request(ctx context.Context) (PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Default && p.answer != "" {
		p.state = p.answer
	}
	return p.state, nil
}

// PromptPermission asks on a terminal. An empty answer leaves the state at
// default so the next due alarm asks again. Once the input is closed it stops
// asking and stays at default.
type PromptPermission struct {
	in  *bufio.Reader
	out io.Writer

	reqMu   sync.Mutex // serialises Request
	pending chan promptAnswer
	closed  bool // input hit EOF; never ask again

	mu    sync.Mutex
	state PermissionState
}

type promptAnswer struct {
	line string
	err  error
}

func NewPromptPermission(in io.Reader, out io.Writer) *PromptPermission {
	return &PromptPermission{in: bufio.NewReader(in), out: out, state: Default}
}

func (p *PromptPermission) State() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PromptPermission) Request(ctx context.Context) (PermissionState, error) {
	p.reqMu.Lock()
	defer p.reqMu.Unlock()
	if st := p.State(); st != Default {
		return st, nil
	}

	// A read left over from a cancelled request is reused.
	if p.closed {
		return Default, nil
	}
	if p.pending == nil {
		fmt.Fprint(p.out, "Allow alarm notifications? [y/n]: ")
		ch := make(chan promptAnswer, 1)
		go func() {
			line, err := p.in.ReadString('\n')
			ch <- promptAnswer{line, err}
		}()
		p.pending = ch
	}

	var a promptAnswer
	select {
	case <-ctx.Done():
		return Default, ctx.Err()
	case a = <-p.pending:
		p.pending = nil
	}
	if a.err != nil && a.line == "" {
		if errors.Is(a.err, io.EOF) {
			p.closed = true
			return Default, nil
		}
		return Default, a.err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(a.line)) {
	case "y", "yes":
		p.state = Granted
	case "n", "no":
		p.state = Denied
	}
	return p.state, nil
}

// ParsePermission maps a config value onto a state; unknown values are default.
func ParsePermission(s string) PermissionState {
	switch PermissionState(strings.ToLower(strings.TrimSpace(s))) {
	case Granted:
		return Granted
	case Denied:
		return Denied
	}
	return Default
}
