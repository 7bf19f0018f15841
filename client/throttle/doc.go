// Package throttle provides an [http.RoundTripper] that rate-limits
// outbound requests with one [golang.org/x/time/rate] token bucket per
// remote host.
//
// The download client wraps its transport with it so a page that
// triggers a burst of downloads can't hammer a single origin, while
// downloads from other origins carry on unthrottled:
//
//	rt, err := throttle.NewRoundTripper(throttle.Config{RPS: 4, Burst: 8}, http.DefaultTransport)
//	httpClient := &http.Client{Transport: rt}
//
// A request that finds its host's bucket empty blocks until a token
// arrives or its context ends.
package throttle
