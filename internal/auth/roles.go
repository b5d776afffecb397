package auth

import (
	"strings"

	"github.com/mvl-at/openkeg/internal/domain"
	"github.com/mvl-at/openkeg/internal/roster"
)

// Authorizer answers whether a member holds a logical role. Roles map to
// the plural names of executive groups in the directory; both the plural
// name and the member's distinguished name are compared ignoring case.
type Authorizer struct {
	cache *roster.Cache
	roles map[string]string
}

// NewAuthorizer creates an authorizer over the member cache and the
// role-to-group mapping from the configuration.
func NewAuthorizer(cache *roster.Cache, roles map[string]string) *Authorizer {
	return &Authorizer{cache: cache, roles: roles}
}

// HasRole reports whether member belongs to the executive group mapped to
// role. It fails closed: an unmapped role, a group missing from the cache,
// or a member not in the group all deny.
func (a *Authorizer) HasRole(member domain.Member, role string) bool {
	plural, ok := a.roles[role]
	if !ok || plural == "" {
		return false
	}
	for _, group := range a.cache.Snapshot().Executives {
		if !strings.EqualFold(group.NamePlural, plural) {
			continue
		}
		for _, dn := range group.Members {
			if strings.EqualFold(dn, member.FullUsername) {
				return true
			}
		}
	}
	return false
}
