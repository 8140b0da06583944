// Package dns resolves the relay and directory hostnames. The system
// resolver is tried first; when it cannot answer, a race across public
// resolvers keeps room entry working on networks with broken local DNS.
package dns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const (
	systemTimeout = time.Second
	publicTimeout = 2 * time.Second
)

// publicResolvers are well-known, high-availability DNS servers.
var publicResolvers = []string{
	"1.0.0.1",                // Cloudflare
	"1.1.1.1",                // Cloudflare
	"[2606:4700:4700::1111]", // Cloudflare
	"[2606:4700:4700::1001]", // Cloudflare
	"8.8.4.4",                // Google
	"8.8.8.8",                // Google
	"[2001:4860:4860::8844]", // Google
	"[2001:4860:4860::8888]", // Google
	"9.9.9.9",                // Quad9
	"149.112.112.112",        // Quad9
	"[2620:fe::fe]",          // Quad9
	"208.67.220.220",         // Cisco OpenDNS
	"208.67.222.222",         // Cisco OpenDNS
}

// ErrNoAddresses reports a lookup that returned no usable address.
var ErrNoAddresses = errors.New("no addresses found")

// Resolve returns an IP address for host. Literal IPs pass through
// untouched.
func Resolve(ctx context.Context, host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}

	if ip, err := systemLookup(ctx, host); err == nil {
		return ip, nil
	}

	slog.Debug("System DNS failed, racing public resolvers", "host", host)
	return publicRace(ctx, host)
}

// DialContext resolves addr's host with Resolve and dials the result.
// Drop-in for the dialer hooks of websocket and http transports.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ip, err := Resolve(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}

	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

func systemLookup(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, systemTimeout)
	defer cancel()

	var r net.Resolver
	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return pickAddress(addrs)
}

// publicRace queries every public resolver concurrently and returns
// the first success.
func publicRace(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, publicTimeout)
	defer cancel()

	results := make(chan string, len(publicResolvers))
	for _, server := range publicResolvers {
		go func(server string) {
			ip, err := resolverLookup(ctx, host, server)
			if err != nil {
				results <- ""
				return
			}
			results <- ip
		}(server)
	}

	for range publicResolvers {
		select {
		case ip := <-results:
			if ip != "" {
				return ip, nil
			}
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: %w", host, ctx.Err())
		}
	}
	return "", fmt.Errorf("resolve %s: every public resolver failed", host)
}

// resolverLookup queries one specific DNS server for host.
func resolverLookup(ctx context.Context, host, server string) (string, error) {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}

	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return pickAddress(addrs)
}

// pickAddress prefers IPv4, falling back to the first result.
func pickAddress(addrs []string) (string, error) {
	if len(addrs) == 0 {
		return "", ErrNoAddresses
	}
	for _, addr := range addrs {
		if net.ParseIP(addr).To4() != nil {
			return addr, nil
		}
	}
	return addrs[0], nil
}
