package roster

import (
	"sort"
	"sync"

	"github.com/mvl-at/openkeg/internal/domain"
)

// Snapshot is one consistent view of the cache: all six collections stem
// from the same synchronization cycle. The contained slices are never
// mutated after a cycle completes and must be treated as read-only.
type Snapshot struct {
	Members    []domain.Member
	Sutlers    []domain.Member
	Honorary   []domain.Member
	Registers  []domain.Group
	Executives []domain.Group
	ByRegister []domain.RegisterEntry
}

// Cache is the process-wide member cache. It starts empty, is replaced
// wholesale by every successful synchronization cycle, and is read
// concurrently by the request-handling paths. It is handed around
// explicitly, there is no package-level instance, so tests construct
// isolated caches per case.
type Cache struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// ReplaceAll swaps in a new cache generation under a single write lock.
// Members, sutlers and honorary members are sorted by joining year, last
// name, first name; groups by name; the register entries are rebuilt by
// matching each register's member DNs against the sorted member list.
// Readers never observe a mix of old and new collections.
func (c *Cache) ReplaceAll(members, sutlers, honorary []domain.Member, registers, executives []domain.Group) {
	next := Snapshot{
		Members:    sortedMembers(members),
		Sutlers:    sortedMembers(sutlers),
		Honorary:   sortedMembers(honorary),
		Registers:  sortedGroups(registers),
		Executives: sortedGroups(executives),
	}
	next.ByRegister = buildRegisterEntries(next.Registers, next.Members)

	c.mu.Lock()
	c.snap = next
	c.mu.Unlock()
}

// Snapshot returns the current cache generation. All six collections are
// taken under one read lock and therefore stem from the same cycle.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Find looks up a member by username or any mail address, ignoring case.
func (c *Cache) Find(id string) (domain.Member, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.snap.Members {
		if m.Matches(id) {
			return m, true
		}
	}
	return domain.Member{}, false
}

func sortedMembers(members []domain.Member) []domain.Member {
	out := make([]domain.Member, len(members))
	copy(out, members)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func sortedGroups(groups []domain.Group) []domain.Group {
	out := make([]domain.Group, len(groups))
	copy(out, groups)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func buildRegisterEntries(registers []domain.Group, members []domain.Member) []domain.RegisterEntry {
	entries := make([]domain.RegisterEntry, 0, len(registers))
	for _, register := range registers {
		dns := make(map[string]bool, len(register.Members))
		for _, dn := range register.Members {
			dns[dn] = true
		}
		var grouped []domain.Member
		for _, m := range members {
			if dns[m.FullUsername] {
				grouped = append(grouped, m)
			}
		}
		entries = append(entries, domain.RegisterEntry{Register: register, Members: grouped})
	}
	return entries
}
