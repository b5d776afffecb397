package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvl-at/openkeg/internal/auth"
	"github.com/mvl-at/openkeg/internal/config"
	"github.com/mvl-at/openkeg/internal/directory"
	"github.com/mvl-at/openkeg/internal/roster"
	"github.com/mvl-at/openkeg/internal/testutil"
)

const (
	karliDN  = "uid=karli,ou=members,dc=example,dc=org"
	mitziDN  = "uid=mitzi,ou=members,dc=example,dc=org"
	karliPwd = "steinscheisser-karl"
)

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:         ":0",
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		CORSAllowedOrigins: []string{"*"},
		Roles:              map[string]string{"archive": "Archivists"},
		Directory: config.DirectoryConfig{
			Server:         "ldap://fake:389",
			ConnectTimeout: time.Second,
			SyncInterval:   time.Minute,

			MemberBase:      "ou=members,dc=example,dc=org",
			MemberFilter:    "(objectClass=person)",
			SutlerBase:      "ou=sutlers,dc=example,dc=org",
			SutlerFilter:    "(objectClass=person)",
			HonoraryBase:    "ou=honorary,dc=example,dc=org",
			HonoraryFilter:  "(objectClass=person)",
			RegisterBase:    "ou=registers,dc=example,dc=org",
			RegisterFilter:  "(objectClass=groupOfNames)",
			ExecutiveBase:   "ou=executives,dc=example,dc=org",
			ExecutiveFilter: "(objectClass=groupOfNames)",

			MemberMapping: config.MemberMapping{
				Username: "uid", FirstName: "givenName", LastName: "sn",
				CommonName: "cn", Titles: "title", WhatsApp: "whatsapp",
				Joining: "joining", Listed: "listed", Official: "official",
				Gender: "gender", Active: "active", Mobile: "mobile",
				Birthday: "birthday", Mail: "mail", Photo: "jpegPhoto",
			},
			AddressMapping: config.AddressMapping{
				Street: "street", HouseNumber: "houseIdentifier",
				PostalCode: "postalCode", City: "l", State: "st", CountryCode: "c",
			},
			GroupMapping: config.GroupMapping{
				Name: "cn", NamePlural: "displayName",
				Description: "description", Members: "member",
			},
		},
		JWT: config.JWTConfig{
			Issuer:            "https://keg.example.org",
			Expiration:        30 * time.Minute,
			RenewalExpiration: 60 * 24 * time.Hour,
		},
	}
}

func testDirectory() *testutil.FakeDirectory {
	return &testutil.FakeDirectory{
		Entries: map[string][]*ldap.Entry{
			"ou=members,dc=example,dc=org": {
				testutil.MemberEntry(karliDN, "karli", "Karl", "Steinscheisser", "2003",
					map[string][]string{
						"mail":   {"karli@example.org"},
						"mobile": {"+43 664 91828374"},
						"title":  {"Held"},
					}),
				testutil.MemberEntry(mitziDN, "mitzi", "Mitzi", "Tschurtschenthaler", "2011",
					map[string][]string{"listed": {"false"}}),
			},
			"ou=sutlers,dc=example,dc=org":  {},
			"ou=honorary,dc=example,dc=org": {},
			"ou=registers,dc=example,dc=org": {
				testutil.GroupEntry("cn=horn,ou=registers,dc=example,dc=org", "Horn", "Horns",
					[]string{karliDN, mitziDN}),
			},
			"ou=executives,dc=example,dc=org": {
				testutil.GroupEntry("cn=archive,ou=executives,dc=example,dc=org", "Archivist", "Archivists",
					[]string{karliDN}),
			},
		},
		Credentials: map[string]string{karliDN: karliPwd},
	}
}

type fixture struct {
	server *httptest.Server
	dir    *testutil.FakeDirectory
	keys   *auth.KeyPair
}

func newFixture(t *testing.T, withKeys bool) fixture {
	t.Helper()

	cfg := testConfig()
	dir := testDirectory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := directory.NewClientWithDial(cfg.Directory, dir.Dial, logger)
	cache := roster.NewCache()
	syncer := roster.NewSyncer(client, cfg.Directory, cache, logger)
	require.NoError(t, syncer.RunOnce(context.Background()))

	var keys *auth.KeyPair
	if withKeys {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		keys = &auth.KeyPair{Private: key, Public: &key.PublicKey}
	}

	handler := NewHandler(
		cfg,
		auth.NewIssuer(keys, cfg.JWT),
		auth.NewValidator(keys, cache),
		auth.NewAuthorizer(cache, cfg.Roles),
		client,
		cache,
		logger,
	)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)
	return fixture{server: server, dir: dir, keys: keys}
}

func (f fixture) get(t *testing.T, path string, configure func(*http.Request)) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(t, err)
	if configure != nil {
		configure(req)
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// TestLoginEndToEnd walks the full happy path: Basic login yields a token
// pair, the access token unlocks the self views, and the renewal token can
// be exchanged for a working fresh access token.
func TestLoginEndToEnd(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)

	resp := fx.get(t, "/login", func(r *http.Request) { r.SetBasicAuth("karli", karliPwd) })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access := resp.Header.Get("Authorization")
	renewal := resp.Header.Get("Authorization-Renewal")
	require.NotEmpty(t, access)
	require.NotEmpty(t, renewal)

	// The access token authenticates the self view.
	resp = fx.get(t, "/self", func(r *http.Request) { r.Header.Set("Authorization", access) })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var self map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&self))
	assert.Equal(t, "karli", self["username"])
	assert.Equal(t, karliDN, self["fullUsername"])

	// Karli sits in the archive group.
	resp = fx.get(t, "/self/roles", func(r *http.Request) { r.Header.Set("Authorization", access) })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var roles []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&roles))
	assert.Equal(t, []string{"archive"}, roles)

	// The renewal token buys a fresh access token.
	resp = fx.get(t, "/login/renewal", func(r *http.Request) { r.Header.Set("Authorization", renewal) })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fresh := resp.Header.Get("Authorization")
	require.NotEmpty(t, fresh)

	resp = fx.get(t, "/self", func(r *http.Request) { r.Header.Set("Authorization", fresh) })
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginWithMailAddress(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	resp := fx.get(t, "/login", func(r *http.Request) { r.SetBasicAuth("Karli@Example.ORG", karliPwd) })
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Authorization"))
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)

	tests := []struct {
		name      string
		configure func(*http.Request)
	}{
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("karli", "wrong") }},
		{"unknown user", func(r *http.Request) { r.SetBasicAuth("nobody", karliPwd) }},
		{"no credentials", nil},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp := fx.get(t, "/login", tc.configure)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			// The body never hints at which step failed.
			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "unauthorized", body["message"])
		})
	}
}

func TestLoginDirectoryUnavailable(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	fx.dir.DialErr = assert.AnError

	resp := fx.get(t, "/login", func(r *http.Request) { r.SetBasicAuth("karli", karliPwd) })
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLoginWithoutSigningKeys(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, false)
	resp := fx.get(t, "/login", func(r *http.Request) { r.SetBasicAuth("karli", karliPwd) })
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRenewalRejectsAccessToken(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	resp := fx.get(t, "/login", func(r *http.Request) { r.SetBasicAuth("karli", karliPwd) })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access := resp.Header.Get("Authorization")

	resp = fx.get(t, "/login/renewal", func(r *http.Request) { r.Header.Set("Authorization", access) })
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSelfRequiresToken(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)

	resp := fx.get(t, "/self", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fx.get(t, "/self", func(r *http.Request) { r.Header.Set("Authorization", "Bearer bogus") })
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMembersVisibility(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)

	// Anonymous: only listed members, no contact details.
	resp := fx.get(t, "/members", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var crew webCrew
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&crew))
	require.Len(t, crew.Musicians, 1)
	require.Len(t, crew.Musicians[0].Members, 1)
	public := crew.Musicians[0].Members[0]
	assert.Equal(t, "karli", public.Username)
	assert.Nil(t, public.MemberSensitives)

	// Authenticated: the unlisted member and the contact details appear.
	login := fx.get(t, "/login", func(r *http.Request) { r.SetBasicAuth("karli", karliPwd) })
	require.Equal(t, http.StatusOK, login.StatusCode)
	access := login.Header.Get("Authorization")

	resp = fx.get(t, "/members", func(r *http.Request) { r.Header.Set("Authorization", access) })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	crew = webCrew{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&crew))
	require.Len(t, crew.Musicians, 1)
	require.Len(t, crew.Musicians[0].Members, 2)
	full := crew.Musicians[0].Members[0]
	require.NotNil(t, full.MemberSensitives)
	assert.Equal(t, []string{"karli@example.org"}, full.Mail)
	assert.Equal(t, []string{"+43 664 91828374"}, full.Mobile)
}
