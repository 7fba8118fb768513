package app

import (
	"net"
	"net/http"
	"time"

	"github.com/hyperifyio/gosite/internal/llm"
)

// newLLMHTTPClient returns the client used for generation calls. There is no
// client-wide timeout; each call is bounded by its context.
func newLLMHTTPClient(callTimeout time.Duration) *http.Client {
	if callTimeout <= 0 {
		callTimeout = llm.DefaultCallTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: callTimeout,
	}
	return &http.Client{Transport: transport}
}
