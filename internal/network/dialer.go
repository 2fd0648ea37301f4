// File: internal/network/dialer.go
package network

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DialerConfig holds configuration for the low-level TCP dialer.
type DialerConfig struct {
	Timeout   time.Duration
	KeepAlive time.Duration
	// NoDelay controls TCP_NODELAY. Left on for small, frequent API calls.
	NoDelay bool
	// ProxyURL specifies the upstream proxy. Only HTTP proxies using the
	// CONNECT method are supported.
	ProxyURL *url.URL
}

// NewDialerConfig returns defaults suited to interactive portal traffic.
func NewDialerConfig() *DialerConfig {
	return &DialerConfig{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
		NoDelay:   true,
	}
}

// DialTCPContext establishes a raw TCP connection, tunneling through the
// configured proxy when one is set. Suitable for http.Transport.DialContext;
// TLS to the target is handled by the transport, not here.
func DialTCPContext(ctx context.Context, network, address string, config *DialerConfig) (net.Conn, error) {
	if config == nil {
		config = NewDialerConfig()
	}
	if config.ProxyURL != nil {
		return dialViaProxy(ctx, network, address, config)
	}
	return dialDirect(ctx, network, address, config)
}

func dialDirect(ctx context.Context, network, address string, config *DialerConfig) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   config.Timeout,
		KeepAlive: config.KeepAlive,
		// Happy Eyeballs (RFC 8305) for faster IPv4/IPv6 fallback.
		FallbackDelay: 300 * time.Millisecond,
	}

	rawConn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("tcp dial failed: %w", err)
	}

	if tcpConn, ok := rawConn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(config.NoDelay); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("failed to set TCP NoDelay: %w", err)
		}
	}
	return rawConn, nil
}

func dialViaProxy(ctx context.Context, network, targetAddress string, config *DialerConfig) (net.Conn, error) {
	proxyURL := config.ProxyURL
	if proxyURL.Scheme != "http" {
		return nil, fmt.Errorf("unsupported proxy scheme for tunneling: %s", proxyURL.Scheme)
	}

	proxyConn, err := dialDirect(ctx, network, proxyURL.Host, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to proxy %s: %w", proxyURL.Host, err)
	}

	tunnel, err := establishProxyTunnel(ctx, proxyConn, targetAddress, proxyURL)
	if err != nil {
		_ = proxyConn.Close()
		return nil, err
	}
	return tunnel, nil
}

// establishProxyTunnel sends the HTTP CONNECT request and verifies the response.
func establishProxyTunnel(ctx context.Context, conn net.Conn, targetAddress string, proxyURL *url.URL) (net.Conn, error) {
	connectReq := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: targetAddress},
		Host:   targetAddress,
		Header: make(http.Header),
	}

	if proxyURL.User != nil {
		auth := proxyURL.User.Username()
		if password, ok := proxyURL.User.Password(); ok {
			auth += ":" + password
		}
		connectReq.Header.Set("Proxy-Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(auth)))
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	if err := connectReq.Write(conn); err != nil {
		return nil, fmt.Errorf("failed to write CONNECT request: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, connectReq)
	if err != nil {
		return nil, fmt.Errorf("failed to read CONNECT response: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy responded with non-200 status for CONNECT: %s", resp.Status)
	}

	// Preserve any bytes the reader consumed past the response headers.
	if br.Buffered() > 0 {
		return &prefixedConn{Conn: conn, prefix: br}, nil
	}
	return conn, nil
}

// prefixedConn reads first from an internal buffer before the underlying Conn.
type prefixedConn struct {
	net.Conn
	prefix io.Reader
}

func (c *prefixedConn) Read(p []byte) (int, error) {
	if c.prefix != nil {
		n, err := c.prefix.Read(p)
		if err == io.EOF {
			c.prefix = nil
			if n > 0 {
				return n, nil
			}
		} else if n > 0 || err != nil {
			return n, err
		}
	}
	return c.Conn.Read(p)
}
