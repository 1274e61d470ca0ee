// Package action runs what a configured chord is bound to.
package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"

	"keychord/internal/config"
)

var (
	// ErrUnknownAction is returned by Build for an unsupported action kind.
	ErrUnknownAction = errors.New("unknown action")

	// ErrMissingField is returned by Build when the action lacks its command or script.
	ErrMissingField = errors.New("action field missing")
)

// DefaultTimeout bounds a single action run.
const DefaultTimeout = 30 * time.Second

// waitDelay bounds how long a cancelled command's children may keep its output open.
const waitDelay = time.Second

// Action is the work bound to a chord.
type Action interface {
	Run(ctx context.Context) error
}

// Build creates the action described by ch.
func Build(ch config.ChordConfig) (Action, error) {
	switch ch.Action {
	case "", config.ActionLog:
		return &Log{Name: ch.Name, Message: ch.Message}, nil
	case config.ActionExec:
		if len(ch.Command) == 0 || ch.Command[0] == "" {
			return nil, fmt.Errorf("%w: chord %q needs a command", ErrMissingField, ch.Name)
		}
		return &Exec{Name: ch.Name, Command: ch.Command, Timeout: DefaultTimeout}, nil
	case config.ActionLua:
		if strings.TrimSpace(ch.Script) == "" {
			return nil, fmt.Errorf("%w: chord %q needs a script", ErrMissingField, ch.Name)
		}
		return &Lua{Name: ch.Name, Script: ch.Script}, nil
	}
	return nil, fmt.Errorf("%w %q for chord %q", ErrUnknownAction, ch.Action, ch.Name)
}

// Log writes a line to the daemon log.
type Log struct {
	Name    string
	Message string
}

// Run implements Action.
func (a *Log) Run(context.Context) error {
	if a.Message == "" {
		log.Printf("Action: chord %q fired", a.Name)
		return nil
	}
	log.Printf("Action: chord %q: %s", a.Name, a.Message)
	return nil
}

// Exec runs an external program and waits for it.
type Exec struct {
	Name    string
	Command []string
	Timeout time.Duration
}

// Run implements Action.
func (a *Exec) Run(ctx context.Context) error {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, a.Command[0], a.Command[1:]...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		out := strings.TrimSpace(output.String())
		if out != "" {
			return fmt.Errorf("chord %q: %s: %w: %s", a.Name, a.Command[0], err, out)
		}
		return fmt.Errorf("chord %q: %s: %w", a.Name, a.Command[0], err)
	}
	return nil
}
