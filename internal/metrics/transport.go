package metrics

import (
	"net/http"
	"time"
)

type instrumentedTransport struct {
	provider string
	next     http.RoundTripper
	c        *Collector
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	t.c.RecordUpstreamRequest(t.provider, status, time.Since(start))
	return resp, err
}

// InstrumentClient returns a copy of base whose transport records every call
// under provider. A nil base is treated as a zero http.Client with the given timeout.
func (c *Collector) InstrumentClient(provider string, base *http.Client, timeout time.Duration) *http.Client {
	var cl http.Client
	if base != nil {
		cl = *base
	}
	if cl.Timeout == 0 {
		cl.Timeout = timeout
	}
	next := cl.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	if c != nil {
		cl.Transport = &instrumentedTransport{provider: provider, next: next, c: c}
	}
	return &cl
}
