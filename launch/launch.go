// Package launch hands intents to whatever the host uses to open things:
// the activity manager on Android, the desktop opener elsewhere.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// ErrNoHandler is returned when nothing on the host can take the intent.
var ErrNoHandler = errors.New("no handler found for intent")

// Action names what the receiver should do with the intent's data.
type Action string

const (
	ActionView   Action = "android.intent.action.VIEW"
	ActionDial   Action = "android.intent.action.DIAL"
	ActionSendTo Action = "android.intent.action.SENDTO"
)

// Intent is a request to open data with an external handler.
type Intent struct {
	Action Action
	Data   string
	Type   string

	// ChooserTitle, when set, asks the host to let the user pick a handler.
	ChooserTitle string

	// GrantRead grants the receiver read access to a content URI.
	GrantRead bool

	// GrantToken names the read grant backing Data, if any.
	GrantToken string
}

// Launcher starts an intent.
type Launcher interface {
	Launch(ctx context.Context, in Intent) error
}

// ContentResolver maps a content URI to a local path for hosts that cannot
// open content URIs themselves.
type ContentResolver func(uri string) (string, error)

// Runner executes a command. It exists so tests can observe commands.
type Runner func(ctx context.Context, name string, args ...string) error

// Exec launches intents by running host commands.
type Exec struct {
	goos     string
	run      Runner
	resolver ContentResolver
	baseURL  string
	logger   *slog.Logger
}

// Option configures an [Exec].
type Option func(*Exec)

// WithGOOS overrides the target platform, which defaults to runtime.GOOS.
func WithGOOS(goos string) Option {
	return func(e *Exec) { e.goos = goos }
}

// WithRunner replaces command execution.
func WithRunner(run Runner) Option {
	return func(e *Exec) { e.run = run }
}

// WithContentResolver lets desktop hosts open content URIs via their file.
func WithContentResolver(fn ContentResolver) Option {
	return func(e *Exec) { e.resolver = fn }
}

// WithContentBaseURL makes desktop hosts open granted content through the
// bridge at baseURL + "/content/<token>" instead of resolving it to a file.
func WithContentBaseURL(baseURL string) Option {
	return func(e *Exec) { e.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exec) { e.logger = logger }
}

// NewExec returns an Exec launcher for the current platform.
func NewExec(opts ...Option) *Exec {
	e := Exec{
		goos:   runtime.GOOS,
		run:    runCommand,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&e)
	}

	return &e
}

// Launch runs the platform command for in.
func (e *Exec) Launch(ctx context.Context, in Intent) error {
	name, args, err := e.command(in)
	if err != nil {
		return err
	}

	e.logger.Debug("launching intent", "action", in.Action, "command", name, "args", args)

	if err := e.run(ctx, name, args...); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrNoHandler, err)
		}
		return fmt.Errorf("launching %s: %w", in.Action, err)
	}

	return nil
}

func (e *Exec) command(in Intent) (string, []string, error) {
	if in.Data == "" {
		return "", nil, fmt.Errorf("%w: intent has no data", ErrNoHandler)
	}

	if e.goos == "android" {
		args := []string{"start", "-a", string(in.Action), "-d", in.Data}
		if in.Type != "" {
			args = append(args, "-t", in.Type)
		}
		if in.GrantRead {
			args = append(args, "--grant-read-uri-permission")
		}
		if in.ChooserTitle != "" {
			args = append(args, "--es", "android.intent.extra.TITLE", in.ChooserTitle)
		}
		return "am", args, nil
	}

	target, err := e.target(in)
	if err != nil {
		return "", nil, err
	}

	switch e.goos {
	case "darwin":
		return "open", []string{target}, nil
	case "windows":
		return "cmd", []string{"/c", "start", "", target}, nil
	default:
		return "xdg-open", []string{target}, nil
	}
}

// target resolves content URIs for desktop openers.
func (e *Exec) target(in Intent) (string, error) {
	data := in.Data

	u, err := url.Parse(data)
	if err != nil || u.Scheme != "content" {
		return data, nil
	}

	if e.baseURL != "" && in.GrantToken != "" {
		return e.baseURL + "/content/" + url.PathEscape(in.GrantToken), nil
	}

	if e.resolver == nil {
		return "", fmt.Errorf("%w: cannot open %s", ErrNoHandler, data)
	}

	path, err := e.resolver(data)
	if err != nil {
		return "", fmt.Errorf("resolving content uri: %w", err)
	}

	return path, nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}
