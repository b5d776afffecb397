package api

import (
	"github.com/mvl-at/openkeg/internal/domain"
	"github.com/mvl-at/openkeg/internal/roster"
)

// webCrew is the public roster view: registers with their musicians plus
// the sutler and honorary member lists.
type webCrew struct {
	Musicians       []webRegister `json:"musicians"`
	Sutlers         []webMember   `json:"sutlers"`
	HonoraryMembers []webMember   `json:"honoraryMembers"`
}

type webRegister struct {
	Name        string      `json:"name"`
	NamePlural  string      `json:"namePlural"`
	Description string      `json:"description,omitempty"`
	Members     []webMember `json:"members"`
}

// webMember is a member as exposed over the API. The sensitive contact
// fields are only attached when the request is authenticated.
type webMember struct {
	Username   string   `json:"username"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	CommonName string   `json:"commonName"`
	Titles     []string `json:"titles"`
	Joining    int      `json:"joining"`
	Official   bool     `json:"official"`
	Active     bool     `json:"active"`
	Gender     string   `json:"gender"`
	WhatsApp   bool     `json:"whatsapp"`

	*MemberSensitives
}

// MemberSensitives holds the contact fields gated behind authentication.
// Exported so encoding/json can allocate the embedded pointer when
// decoding a member back from its flattened wire form.
type MemberSensitives struct {
	FullUsername string          `json:"fullUsername"`
	Mobile       []string        `json:"mobile"`
	Mail         []string        `json:"mail"`
	Birthday     string          `json:"birthday"`
	Address      *domain.Address `json:"address,omitempty"`
}

func toWebMember(m domain.Member, sensitive bool) webMember {
	web := webMember{
		Username:   m.Username,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		CommonName: m.CommonName,
		Titles:     m.Titles,
		Joining:    m.Joining,
		Official:   m.Official,
		Active:     m.Active,
		Gender:     m.Gender,
		WhatsApp:   m.WhatsApp,
	}
	if sensitive {
		web.MemberSensitives = &MemberSensitives{
			FullUsername: m.FullUsername,
			Mobile:       m.Mobile,
			Mail:         m.Mail,
			Birthday:     m.Birthday,
			Address:      m.Address,
		}
	}
	return web
}

// toWebCrew converts a cache snapshot into the roster view. Anonymous
// callers only see members that opted into the public listing and no
// sensitive contact fields.
func toWebCrew(snap roster.Snapshot, authenticated bool) webCrew {
	crew := webCrew{
		Musicians:       make([]webRegister, 0, len(snap.ByRegister)),
		Sutlers:         toWebMembers(snap.Sutlers, authenticated),
		HonoraryMembers: toWebMembers(snap.Honorary, authenticated),
	}
	for _, entry := range snap.ByRegister {
		crew.Musicians = append(crew.Musicians, webRegister{
			Name:        entry.Register.Name,
			NamePlural:  entry.Register.NamePlural,
			Description: entry.Register.Description,
			Members:     toWebMembers(entry.Members, authenticated),
		})
	}
	return crew
}

func toWebMembers(members []domain.Member, authenticated bool) []webMember {
	out := make([]webMember, 0, len(members))
	for _, m := range members {
		if !authenticated && !m.Listed {
			continue
		}
		out = append(out, toWebMember(m, authenticated))
	}
	return out
}
