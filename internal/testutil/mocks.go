// Package testutil provides shared fake implementations for use in tests
// across the codebase, most notably an in-memory directory server that can
// back a directory.Client.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ldap "github.com/go-ldap/ldap/v3"

	"github.com/mvl-at/openkeg/internal/directory"
)

// FakeDirectory is an in-memory stand-in for the directory server. Its
// Dial method plugs into directory.NewClientWithDial.
type FakeDirectory struct {
	mu sync.Mutex

	// Entries maps a base DN to the entries a subtree search returns.
	Entries map[string][]*ldap.Entry
	// FailBases marks base DNs whose search fails.
	FailBases map[string]bool
	// Credentials maps a bind DN to its accepted password. When nil,
	// every bind succeeds (anonymous-friendly directory).
	Credentials map[string]string
	// DialErr, when set, fails every dial attempt.
	DialErr error

	// Binds records every attempted bind DN for assertions.
	Binds []string
}

// Dial returns an in-memory connection, or DialErr when set.
func (d *FakeDirectory) Dial(_ context.Context, _ string) (directory.Conn, error) {
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	return &fakeConn{dir: d}, nil
}

type fakeConn struct {
	dir *FakeDirectory
}

func (c *fakeConn) Bind(username, password string) error {
	c.dir.mu.Lock()
	defer c.dir.mu.Unlock()
	c.dir.Binds = append(c.dir.Binds, username)
	if c.dir.Credentials == nil {
		return nil
	}
	if want, ok := c.dir.Credentials[username]; ok && want == password {
		return nil
	}
	return errors.New("invalid credentials")
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	c.dir.mu.Lock()
	defer c.dir.mu.Unlock()
	if c.dir.FailBases[req.BaseDN] {
		return nil, fmt.Errorf("search under %q failed", req.BaseDN)
	}
	return &ldap.SearchResult{Entries: c.dir.Entries[req.BaseDN]}, nil
}

func (c *fakeConn) Unbind() error { return nil }

func (c *fakeConn) Close() error { return nil }

// MemberEntry builds a directory entry for a member with the attribute
// names of the default mappings.
func MemberEntry(dn, username, firstName, lastName, joining string, extra map[string][]string) *ldap.Entry {
	attrs := map[string][]string{
		"uid":       {username},
		"givenName": {firstName},
		"sn":        {lastName},
		"cn":        {firstName + " " + lastName},
		"joining":   {joining},
		"gender":    {"m"},
		"active":    {"true"},
		"official":  {"true"},
		"listed":    {"true"},
	}
	for name, values := range extra {
		attrs[name] = values
	}
	return ldap.NewEntry(dn, attrs)
}

// GroupEntry builds a directory entry for a group with the attribute names
// of the default mappings.
func GroupEntry(dn, name, plural string, memberDNs []string) *ldap.Entry {
	return ldap.NewEntry(dn, map[string][]string{
		"cn":          {name},
		"displayName": {plural},
		"description": {name + " register"},
		"member":      memberDNs,
	})
}
