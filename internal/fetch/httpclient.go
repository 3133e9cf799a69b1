package fetch

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// NewHighThroughputClient returns an *http.Client tuned for the SCRAPE
// stage's fan-out (spec §5: bounded parallelism, no client-side
// throttling beyond the configured concurrency). When sslVerify is
// false, certificate verification is disabled, for targets behind
// self-signed internal proxies.
func NewHighThroughputClient(sslVerify bool) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   1024,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !sslVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}
