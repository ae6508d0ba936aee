// Package client provides an HTTP client implementation used by the loader
// to fetch remote data sources.
// The client provided in here is opinionated and comes with good defaults.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Most of the SSRF-prevention code here is inspired by(or taken from):
//   (a) https://www.agwa.name/blog/post/preventing_server_side_request_forgery_in_golang whose license(CC0 Public Domain) can be found here: https://creativecommons.org/publicdomain/zero/1.0
//   (b) https://www.agwa.name/blog/post/preventing_server_side_request_forgery_in_golang/media/ipaddress.go

// SafeClient creates a client that is safe from Server-side request forgery (SSRF) security vulnerability.
// Use this for data sources whose URL is attacker-influenced.
func SafeClient(l *slog.Logger, timeout time.Duration) *Client {
	return newClient(true, l, timeout)
}

// UnsafeClient creates a client that is NOT safe from Server-side request forgery (SSRF) security vulnerability.
// Use this only when the source URL is fully trusted operator configuration.
func UnsafeClient(l *slog.Logger, timeout time.Duration) *Client {
	return newClient(false, l, timeout)
}

// Client is a [http.Client] that has some good defaults. It also logs requests and responses.
//
// Use either [SafeClient] or [UnsafeClient] to get a valid client.
//
// Clients should be reused instead of created as needed. Clients are safe for concurrent use by multiple goroutines.
//
// see [http.Client]
type Client struct {
	cli *http.Client
	l   *slog.Logger
}

func newClient(ssrfSafe bool, l *slog.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	connectTimeout := timeout
	if connectTimeout > 10*time.Second {
		connectTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Control: ssrfSocketControl(ssrfSafe),
		// see: net.DefaultResolver
		Resolver: &net.Resolver{
			// Prefer Go's built-in DNS resolver.
			PreferGo: true,
		},
		Timeout:   connectTimeout,
		KeepAlive: connectTimeout,
	}

	transport := &http.Transport{
		// see: http.DefaultTransport
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       3 * connectTimeout,
		TLSHandshakeTimeout:   connectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	cli := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}

	if l == nil {
		l = slog.New(slog.NewJSONHandler(discardWriter{}, nil))
	}

	return &Client{
		cli: cli,
		l:   l,
	}
}

// CloseIdleConnections closes any connections on its Transport which were previously connected from previous requests but are now sitting idle in a "keep-alive" state.
//
// It does not interrupt any connections currently in use.
//
// see [http.Client.CloseIdleConnections]
func (c *Client) CloseIdleConnections() {
	c.cli.CloseIdleConnections()
}

// Do sends an HTTP request and returns an HTTP response, following policy (such as redirects) as configured on the client.
// Callers can set conditional-request headers (If-None-Match, If-Modified-Since) on req before calling Do.
//
// see [http.Client.Do]
func (c *Client) Do(ctx context.Context, req *http.Request) (resp *http.Response, err error) {
	end := c.log(ctx, req.URL.Redacted(), req.Method)
	defer func() {
		end(resp, err)
	}()

	return c.cli.Do(req.WithContext(ctx))
}

func (c *Client) log(ctx context.Context, url, method string) func(resp *http.Response, err error) {
	l := c.l.With("url", url, "method", method)
	l.InfoContext(ctx, "http_client request")

	start := time.Now()

	return func(resp *http.Response, err error) {
		durationMS := time.Since(start).Milliseconds()
		if resp != nil {
			l = l.With("code", resp.StatusCode, "durationMS", durationMS)
			if resp.StatusCode >= http.StatusBadRequest {
				l.ErrorContext(ctx, "http_client response", "err", err)
			} else {
				l.InfoContext(ctx, "http_client response")
			}
		} else {
			l.ErrorContext(ctx, "http_client response", "err", err, "durationMS", durationMS)
		}
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func ssrfSocketControl(ssrfSafe bool) func(network, address string, conn syscall.RawConn) error {
	if !ssrfSafe {
		return nil
	}

	return func(network, address string, conn syscall.RawConn) error {
		if !(network == "tcp4" || network == "tcp6") {
			return fmt.Errorf("%s is not a safe network type", network)
		}

		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return fmt.Errorf("%s is not a valid host/port pair: %s", address, err)
		}

		ipaddress := net.ParseIP(host)
		if ipaddress == nil {
			return fmt.Errorf("%s is not a valid IP address", host)
		}

		if !isPublicIPAddress(ipaddress) {
			return fmt.Errorf("%s is not a public IP address", ipaddress)
		}

		return nil
	}
}

func ipv4Net(a, b, c, d byte, subnetPrefixLen int) net.IPNet { // nolint:unparam
	return net.IPNet{
		IP:   net.IPv4(a, b, c, d),
		Mask: net.CIDRMask(96+subnetPrefixLen, 128),
	}
}

func isIPv6GlobalUnicast(address net.IP) bool {
	globalUnicastIPv6Net := net.IPNet{
		IP:   net.IP{0x20, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		Mask: net.CIDRMask(3, 128),
	}
	return globalUnicastIPv6Net.Contains(address)
}

func isIPv4Reserved(address net.IP) bool {
	reservedIPv4Nets := []net.IPNet{
		ipv4Net(0, 0, 0, 0, 8),       // Current network
		ipv4Net(10, 0, 0, 0, 8),      // Private
		ipv4Net(100, 64, 0, 0, 10),   // RFC6598
		ipv4Net(127, 0, 0, 0, 8),     // Loopback
		ipv4Net(169, 254, 0, 0, 16),  // Link-local
		ipv4Net(172, 16, 0, 0, 12),   // Private
		ipv4Net(192, 0, 0, 0, 24),    // RFC6890
		ipv4Net(192, 0, 2, 0, 24),    // Test, doc, examples
		ipv4Net(192, 88, 99, 0, 24),  // IPv6 to IPv4 relay
		ipv4Net(192, 168, 0, 0, 16),  // Private
		ipv4Net(198, 18, 0, 0, 15),   // Benchmarking tests
		ipv4Net(198, 51, 100, 0, 24), // Test, doc, examples
		ipv4Net(203, 0, 113, 0, 24),  // Test, doc, examples
		ipv4Net(224, 0, 0, 0, 4),     // Multicast
		ipv4Net(240, 0, 0, 0, 4),     // Reserved (includes broadcast / 255.255.255.255)
	}

	for _, reservedNet := range reservedIPv4Nets {
		if reservedNet.Contains(address) {
			return true
		}
	}
	return false
}

func isPublicIPAddress(address net.IP) bool {
	if address.To4() != nil {
		return !isIPv4Reserved(address)
	}
	return isIPv6GlobalUnicast(address)
}
