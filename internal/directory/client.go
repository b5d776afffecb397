// Package directory provides a thin client for the LDAP directory server:
// session handling, simple-bind authentication, and typed subtree searches.
//
// The dial function is injectable so tests can substitute an in-memory
// connection; production code uses the go-ldap transport.
package directory

import (
	"context"
	"log/slog"
	"net"

	ldap "github.com/go-ldap/ldap/v3"

	"github.com/mvl-at/openkeg/internal/config"
	"github.com/mvl-at/openkeg/internal/domain"
)

// Conn is the subset of the go-ldap connection used by the client.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Unbind() error
	Close() error
}

// DialFunc opens a transport connection to the directory server.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// Client talks to the directory server configured in cfg.
type Client struct {
	cfg    config.DirectoryConfig
	dial   DialFunc
	logger *slog.Logger
}

// NewClient creates a client that dials the real directory server.
func NewClient(cfg config.DirectoryConfig, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, dial: ldapDial(cfg), logger: logger}
}

// NewClientWithDial creates a client with a custom dial function. Used by
// tests to substitute an in-memory directory.
func NewClientWithDial(cfg config.DirectoryConfig, dial DialFunc, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, dial: dial, logger: logger}
}

func ldapDial(cfg config.DirectoryConfig) DialFunc {
	return func(_ context.Context, url string) (Conn, error) {
		conn, err := ldap.DialURL(url, ldap.DialWithDialer(&net.Dialer{Timeout: cfg.ConnectTimeout}))
		if err != nil {
			return nil, err
		}
		conn.SetTimeout(cfg.ConnectTimeout)
		return conn, nil
	}
}

// Open dials the directory server and, when a service bind DN is
// configured, performs a simple bind with the service credentials. A
// rejected service bind is logged and the session is still returned so
// deployments with anonymous read access keep working; only a transport
// failure yields a SessionError.
func (c *Client) Open(ctx context.Context) (Conn, error) {
	c.logger.Debug("open directory session", "server", c.cfg.Server)
	conn, err := c.dial(ctx, c.cfg.Server)
	if err != nil {
		return nil, &domain.SessionError{Server: c.cfg.Server, Err: err}
	}
	if c.cfg.BindDN == "" {
		c.logger.Warn("using directory without a service user")
		return conn, nil
	}
	c.logger.Debug("bind service user", "dn", c.cfg.BindDN)
	if err := conn.Bind(c.cfg.BindDN, c.cfg.Password); err != nil {
		c.logger.Error("failed to bind service user", "dn", c.cfg.BindDN, "error", err)
	}
	return conn, nil
}

// Authenticate opens a fresh session and binds with the given DN and
// password. It is the login primitive: a nil return means the directory
// accepted the credentials.
func (c *Client) Authenticate(ctx context.Context, dn, password string) error {
	conn, err := c.dial(ctx, c.cfg.Server)
	if err != nil {
		return &domain.SessionError{Server: c.cfg.Server, Err: err}
	}
	defer conn.Close() //nolint:errcheck
	return conn.Bind(dn, password)
}

// search runs a single subtree search under base returning all attributes.
func (c *Client) search(conn Conn, base, filter string) ([]Entry, error) {
	c.logger.Debug("directory search", "base", base, "filter", filter)
	req := ldap.NewSearchRequest(
		base,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		[]string{"*"},
		nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		return nil, &domain.DirectoryError{Op: "search", Err: err}
	}
	entries := make([]Entry, 0, len(result.Entries))
	for _, raw := range result.Entries {
		entry := Entry{
			DN:     raw.DN,
			Attrs:  make(map[string][]string, len(raw.Attributes)),
			Binary: make(map[string][][]byte, len(raw.Attributes)),
		}
		for _, attr := range raw.Attributes {
			entry.Attrs[attr.Name] = attr.Values
			entry.Binary[attr.Name] = attr.ByteValues
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Search opens a session, runs a subtree search under base, decodes every
// entry with decode, and unbinds. A failure at any step fails the whole
// call, no partial results are returned.
func Search[T any](ctx context.Context, c *Client, base, filter string, decode func(Entry) T) ([]T, error) {
	conn, err := c.Open(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := c.search(conn, base, filter)
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, err
	}
	typed := make([]T, 0, len(entries))
	for _, entry := range entries {
		typed = append(typed, decode(entry))
	}
	if err := conn.Unbind(); err != nil {
		return nil, &domain.DirectoryError{Op: "unbind", Err: err}
	}
	return typed, nil
}
