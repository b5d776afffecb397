// Package domain holds the value types shared across the application:
// members and groups as sourced from the directory server, plus the error
// taxonomy used between the directory, sync, and auth layers.
package domain

import "strings"

// Member is a single principal sourced from the directory server.
// FullUsername is the distinguished name and acts as the identity key for
// token subject resolution and group membership matching.
type Member struct {
	Username     string   `json:"username"`
	FullUsername string   `json:"fullUsername"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	CommonName   string   `json:"commonName"`
	Titles       []string `json:"titles"`
	WhatsApp     bool     `json:"whatsapp"`
	Joining      int      `json:"joining"`
	Listed       bool     `json:"listed"`
	Official     bool     `json:"official"`
	Gender       string   `json:"gender"`
	Active       bool     `json:"active"`
	Mobile       []string `json:"mobile"`
	Birthday     string   `json:"birthday"`
	Mail         []string `json:"mail"`
	Photo        []byte   `json:"-"`
	Address      *Address `json:"address,omitempty"`
}

// Less orders members by joining year, then last name, then first name.
func (m Member) Less(other Member) bool {
	if m.Joining != other.Joining {
		return m.Joining < other.Joining
	}
	if m.LastName != other.LastName {
		return m.LastName < other.LastName
	}
	return m.FirstName < other.FirstName
}

// Matches reports whether id equals the member's username or one of their
// mail addresses, ignoring case.
func (m Member) Matches(id string) bool {
	if strings.EqualFold(m.Username, id) {
		return true
	}
	for _, mail := range m.Mail {
		if strings.EqualFold(mail, id) {
			return true
		}
	}
	return false
}

// Address is the postal address of a member. It is only present when the
// directory entry supplies every address attribute.
type Address struct {
	Street      string `json:"street"`
	HouseNumber string `json:"houseNumber"`
	PostalCode  string `json:"postalCode"`
	City        string `json:"city"`
	State       string `json:"state"`
	CountryCode string `json:"countryCode"`
}
