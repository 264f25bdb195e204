// Package proxy builds HTTP clients that dial through a SOCKS5 proxy.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// NewSocksClient accepts either host:port or a socks5:// URL (with
// optional user:password).
func NewSocksClient(socksAddr string) (*http.Client, error) {
	if !strings.Contains(socksAddr, "://") {
		socksAddr = "socks5://" + socksAddr
	}
	u, err := url.Parse(socksAddr)
	if err != nil {
		return nil, fmt.Errorf("parse proxy address: %w", err)
	}

	dialer, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   120 * time.Second,
	}, nil
}
