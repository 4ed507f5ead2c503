// Package security hardens outbound HTTP used for checkout provider calls.
//
// The provider base URL comes from configuration. The guard keeps a
// misconfigured or redirected request from reaching the instance metadata
// service, loopback, or private ranges.
package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrBlockedAddress is returned when a connection targets a blocked range.
var ErrBlockedAddress = errors.New("outbound: connection to blocked address")

// ErrTooManyRedirects is returned when the redirect limit is exceeded.
var ErrTooManyRedirects = errors.New("outbound: too many redirects")

const (
	dialTimeout  = 5 * time.Second
	maxRedirects = 3
)

var blockedCIDRs = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16", // instance metadata
	"0.0.0.0/8",
	"100.64.0.0/10",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
}

var blockedNets = mustParseCIDRs(blockedCIDRs)

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("outbound: bad CIDR %q: %v", c, err))
		}
		out = append(out, n)
	}
	return out
}

// IsBlockedIP reports whether ip falls inside a blocked range.
func IsBlockedIP(ip net.IP) bool {
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// dialControl runs after DNS resolution on the address actually dialed, so
// a hostname that rebinds to a private address is still refused.
func dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("outbound: invalid address %q: %w", address, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("%w: unparseable %q", ErrBlockedAddress, host)
	}
	if IsBlockedIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

// NewTransport returns a transport whose dialer refuses blocked ranges.
// allowPrivate disables the check for local development against stubs.
func NewTransport(allowPrivate bool) *http.Transport {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = dialControl
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = dialer.DialContext
	base.TLSHandshakeTimeout = dialTimeout
	return base
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
	}
	if req.URL.Scheme != "https" && req.URL.Scheme != "http" {
		return fmt.Errorf("%w: scheme %q", ErrBlockedAddress, req.URL.Scheme)
	}
	return nil
}

// NewHTTPClient builds the client handed to the checkout provider.
func NewHTTPClient(timeout time.Duration, allowPrivate bool) *http.Client {
	return &http.Client{
		Transport:     NewTransport(allowPrivate),
		Timeout:       timeout,
		CheckRedirect: checkRedirect,
	}
}
