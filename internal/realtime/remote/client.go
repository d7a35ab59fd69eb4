// Package remote implements realtime.Backend against the ephemeral chat server:
// HTTP for auth and table inserts, one WebSocket for every channel.
package remote

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
)

const (
	defaultJoinTimeout   = 10 * time.Second
	defaultRefreshMargin = time.Minute
	defaultRefreshTick   = 15 * time.Second
	socketPath           = "/realtime/v1/websocket"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string
	// SessionPath is where the session is persisted. Empty keeps it in memory only.
	SessionPath string
	JoinTimeout time.Duration
	// RefreshMargin is how long before expiry a token gets refreshed.
	RefreshMargin time.Duration
	RefreshTick   time.Duration
	HTTPClient    *http.Client
	Now           func() time.Time
}

// Client is a realtime.Backend talking to a remote server.
type Client struct {
	base   *url.URL
	http   *http.Client
	auth   *Auth
	socket *socket
	log    *zerolog.Logger
}

var _ realtime.Backend = (*Client)(nil)

// New builds a client. Nothing is dialled until a channel subscribes.
func New(opts Options, logger *zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", opts.BaseURL)
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = defaultJoinTimeout
	}
	if opts.RefreshMargin <= 0 {
		opts.RefreshMargin = defaultRefreshMargin
	}
	if opts.RefreshTick <= 0 {
		opts.RefreshTick = defaultRefreshTick
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	api := &apiClient{base: base, http: opts.HTTPClient}
	auth := newAuth(api, newSessionFile(opts.SessionPath), opts, logger)

	wsURL := *base
	wsURL.Scheme = "ws"
	if base.Scheme == "https" {
		wsURL.Scheme = "wss"
	}
	wsURL.Path = strings.TrimRight(base.Path, "/") + socketPath

	return &Client{
		base:   base,
		http:   opts.HTTPClient,
		auth:   auth,
		socket: newSocket(wsURL.String(), auth.AccessToken, opts.JoinTimeout, logger),
		log:    logger,
	}, nil
}

// Auth returns the auth client.
func (c *Client) Auth() realtime.Auth { return c.auth }

// RemoteAuth exposes the concrete auth, e.g. for StartAutoRefresh.
func (c *Client) RemoteAuth() *Auth { return c.auth }

// Channel creates a new, unsubscribed channel handle.
func (c *Client) Channel(name string, opts realtime.ChannelOptions) realtime.Channel {
	return newChannel(c.socket, name, opts, c.log)
}

// From returns a table handle.
func (c *Client) From(table string) realtime.Table {
	return &Table{name: table, api: c.auth.api, tokens: c.auth.AccessToken}
}

// Close drops the socket if one is open.
func (c *Client) Close() error {
	return c.socket.close()
}
