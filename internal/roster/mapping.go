// Package roster maintains the in-memory snapshot of all directory
// principals and groups: decoding raw directory entries into domain types,
// a concurrently readable cache, and the periodic synchronization task
// that replaces the cache wholesale.
package roster

import (
	"github.com/mvl-at/openkeg/internal/config"
	"github.com/mvl-at/openkeg/internal/directory"
	"github.com/mvl-at/openkeg/internal/domain"
)

// MemberFromEntry decodes a member from a raw directory entry using the
// configured attribute mapping. Scalar fields read the first attribute
// value (empty when absent), multi-valued fields read all values, booleans
// are true iff the first value equals "true" case-insensitively, and the
// joining year defaults to 0 when unparsable.
func MemberFromEntry(e directory.Entry, m config.MemberMapping, a config.AddressMapping) domain.Member {
	gender := "u"
	if g := e.First(m.Gender); g != "" {
		gender = string([]rune(g)[0])
	}
	return domain.Member{
		Username:     e.First(m.Username),
		FullUsername: e.DN,
		FirstName:    e.First(m.FirstName),
		LastName:     e.First(m.LastName),
		CommonName:   e.First(m.CommonName),
		Titles:       e.Values(m.Titles),
		WhatsApp:     e.Bool(m.WhatsApp),
		Joining:      e.Int(m.Joining),
		Listed:       e.Bool(m.Listed),
		Official:     e.Bool(m.Official),
		Gender:       gender,
		Active:       e.Bool(m.Active),
		Mobile:       e.Values(m.Mobile),
		Birthday:     e.First(m.Birthday),
		Mail:         e.Values(m.Mail),
		Photo:        e.FirstBinary(m.Photo),
		Address:      addressFromEntry(e, a),
	}
}

// addressFromEntry decodes an address only when the entry carries every
// one of the six mapped attributes; otherwise the address is absent.
func addressFromEntry(e directory.Entry, a config.AddressMapping) *domain.Address {
	if !e.HasAll(a.Street, a.HouseNumber, a.PostalCode, a.City, a.State, a.CountryCode) {
		return nil
	}
	return &domain.Address{
		Street:      e.First(a.Street),
		HouseNumber: e.First(a.HouseNumber),
		PostalCode:  e.First(a.PostalCode),
		City:        e.First(a.City),
		State:       e.First(a.State),
		CountryCode: e.First(a.CountryCode),
	}
}

// GroupFromEntry decodes a group from a raw directory entry using the
// configured attribute mapping.
func GroupFromEntry(e directory.Entry, m config.GroupMapping) domain.Group {
	return domain.Group{
		Name:        e.First(m.Name),
		NamePlural:  e.First(m.NamePlural),
		Description: e.First(m.Description),
		Members:     e.Values(m.Members),
	}
}
