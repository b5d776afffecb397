package domain

// Group is a directory group: either an organizational register or an
// executive role. Members holds the distinguished names of its members.
type Group struct {
	Name        string   `json:"name"`
	NamePlural  string   `json:"namePlural"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

// Less orders groups by name.
func (g Group) Less(other Group) bool {
	return g.Name < other.Name
}

// RegisterEntry joins one register with the cached members whose
// distinguished name appears in the register's member list. It is derived
// during synchronization and never persisted.
type RegisterEntry struct {
	Register Group
	Members  []Member
}
