package remotecache

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	http3 "github.com/quic-go/quic-go/http3"

	"github.com/vela-lang/vela/internal/effects"
	"github.com/vela-lang/vela/internal/metacache"
)

// Client talks to a remote effects cache over HTTP/3.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient creates a client for the cache at baseURL.
func NewClient(baseURL string, tlsCfg *tls.Config, timeout time.Duration) *Client {
	tr := &http3.Transport{TLSClientConfig: tlsCfg}

	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Transport: tr, Timeout: timeout},
	}
}

// Close releases the underlying QUIC transport.
func (c *Client) Close() {
	if tr, ok := c.hc.Transport.(*http3.Transport); ok {
		_ = tr.Close()
	}
}

// Healthy probes the server's health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote cache unhealthy: %s", resp.Status)
	}

	return nil
}

// Lookup fetches the aggregate published for a method. The second result is
// false when the remote cache has no record of it.
func (c *Client) Lookup(ctx context.Context, id metacache.MethodID) (effects.Effects, bool, error) {
	u := c.base + "/v1/effects?method=" + url.QueryEscape(string(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return effects.Effects{}, false, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return effects.Effects{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return effects.Effects{}, false, nil
	default:
		return effects.Effects{}, false, fmt.Errorf("remote lookup of %s: %s", id, resp.Status)
	}

	var entry metacache.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return effects.Effects{}, false, fmt.Errorf("remote lookup of %s: %w", id, err)
	}

	return effects.DecodeEffects(entry.Effects), true, nil
}

// Publish sends one cached record to the remote cache.
func (c *Client) Publish(ctx context.Context, entry metacache.Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/effects", bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote publish of %s: %s", entry.Method, resp.Status)
	}

	return nil
}

// InsecureClientTLS returns a TLS config that skips verification, for local
// development against a self-signed cache server.
func InsecureClientTLS() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}
}
