package throttle

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config sets the token bucket each remote host gets.
type Config struct {
	RPS   int
	Burst int

	// OnWait, when set, hears about every request that found its host's
	// bucket empty, once the token arrives.
	OnWait func(host string, waited time.Duration)
}

// Validate reports ErrMustNotBeZero for a non-positive rate or burst.
func (c Config) Validate() error {
	if c.RPS <= 0 || c.Burst <= 0 {
		return fmt.Errorf("rps[%d] and burst[%d] %w", c.RPS, c.Burst, ErrMustNotBeZero)
	}
	return nil
}

type throttle struct {
	cfg  Config
	next http.RoundTripper

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewRoundTripper wraps next so that requests to one host share a
// token bucket and requests to different hosts never wait on each
// other.
func NewRoundTripper(cfg Config, next http.RoundTripper) (http.RoundTripper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &throttle{cfg: cfg, next: next, hosts: make(map[string]*rate.Limiter)}, nil
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	host := r.URL.Host
	l := t.limiter(host)

	if !l.Allow() {
		start := time.Now()
		if err := l.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrWaitingFailed, host, err)
		}
		if t.cfg.OnWait != nil {
			t.cfg.OnWait(host, time.Since(start))
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
		}
	}

	return t.next.RoundTrip(r)
}

func (t *throttle) limiter(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.hosts[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(t.cfg.RPS), t.cfg.Burst)
		t.hosts[host] = l
	}

	return l
}
