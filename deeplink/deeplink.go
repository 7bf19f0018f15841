// Package deeplink decides which navigations leave the web view for an
// external app: payments, phone calls and email.
package deeplink

import (
	"context"
	"log/slog"
	"strings"

	"github.com/adamwoolhether/webshell/launch"
	"github.com/adamwoolhether/webshell/metrics"
	"github.com/adamwoolhether/webshell/notify"
)

// Decision is the routing outcome for one URL.
type Decision struct {
	Handled bool          `json:"handled"`
	Action  launch.Action `json:"action,omitempty"`

	// FailureText is shown when the launch fails.
	FailureText string `json:"-"`
}

type rule struct {
	prefixes []string
	action   launch.Action
	failure  string
}

var rules = []rule{
	{
		prefixes: []string{"upi://", "phonepe://", "paytmmp://", "gpay://"},
		action:   launch.ActionView,
		failure:  "No app found to handle payment",
	},
	{prefixes: []string{"tel:"}, action: launch.ActionDial, failure: "Cannot make call"},
	{prefixes: []string{"mailto:"}, action: launch.ActionSendTo, failure: "No email app found"},
}

// Route classifies rawURL without side effects.
func Route(rawURL string) Decision {
	for _, r := range rules {
		for _, p := range r.prefixes {
			if strings.HasPrefix(rawURL, p) {
				return Decision{Handled: true, Action: r.action, FailureText: r.failure}
			}
		}
	}

	return Decision{}
}

// Router launches handled URLs and reports failed launches.
type Router struct {
	launcher launch.Launcher
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRouter returns a Router. m may be nil.
func NewRouter(l launch.Launcher, n notify.Notifier, m *metrics.Metrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{launcher: l, notifier: n, metrics: m, logger: logger}
}

// Navigate routes rawURL and, when handled, launches it. A handled URL is
// consumed even when the launch fails; the failure is notified instead.
func (rt *Router) Navigate(ctx context.Context, rawURL string) Decision {
	d := Route(rawURL)
	if !d.Handled {
		rt.metrics.Navigation("webview")
		return d
	}

	rt.metrics.Navigation(actionLabel(d.Action))

	if err := rt.launcher.Launch(ctx, launch.Intent{Action: d.Action, Data: rawURL}); err != nil {
		rt.logger.Warn("deep link launch failed", "action", d.Action, "error", err)
		rt.notifier.Notify(ctx, notify.Notification{
			Kind:     notify.KindNavigationFailed,
			Text:     d.FailureText,
			Duration: notify.Short,
		})
	}

	return d
}

func actionLabel(a launch.Action) string {
	_, short, _ := strings.Cut(string(a), "action.")
	return strings.ToLower(short)
}
