package fetch

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
)

// newTransport returns a transport whose TLS handshakes send hello's
// ClientHello. ALPN is pinned to http/1.1 because net/http cannot speak h2
// over a uTLS connection.
func newTransport(hello utls.ClientHelloID, rootCAs *x509.CertPool) *http.Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLS(ctx, dialer, network, addr, hello, rootCAs)
		},
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

func dialTLS(ctx context.Context, dialer *net.Dialer, network, addr string, hello utls.ClientHelloID, rootCAs *x509.CertPool) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	spec, err := utls.UTLSIdToSpec(hello)
	if err != nil {
		return nil, fmt.Errorf("client hello %s: %w", hello.Str(), err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	raw, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	conn := utls.UClient(raw, &utls.Config{ServerName: host, RootCAs: rootCAs}, utls.HelloCustom)
	if err := conn.ApplyPreset(&spec); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("apply client hello %s: %w", hello.Str(), err)
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", host, err)
	}
	return conn, nil
}
