package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mvl-at/openkeg/internal/config"
	"github.com/mvl-at/openkeg/internal/domain"
	"github.com/mvl-at/openkeg/internal/roster"
)

// TokenKind discriminates the two token flavors issued per login. An
// access token authenticates API requests; a renewal token may only be
// exchanged for a fresh pair.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RenewalToken
)

func (k TokenKind) String() string {
	if k == RenewalToken {
		return "renewal"
	}
	return "access"
}

// Claims is the full claim set carried by every issued token. All four
// claims are mandatory; tokens lacking any of them are rejected.
type Claims struct {
	Subject   string `json:"sub"`
	Issuer    string `json:"iss"`
	ExpiresAt int64  `json:"exp"`
	Renewal   bool   `json:"ren"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuer() (string, error)              { return c.Issuer, nil }
func (c Claims) GetSubject() (string, error)             { return c.Subject, nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

// wireClaims is the decoding counterpart of Claims. Pointer fields
// distinguish an absent claim from a zero value so that presence of all
// mandatory claims can be enforced after parsing.
type wireClaims struct {
	Subject   *string          `json:"sub"`
	Issuer    *string          `json:"iss"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
	Renewal   *bool            `json:"ren"`
}

func (c *wireClaims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c *wireClaims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c *wireClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c *wireClaims) GetIssuer() (string, error) {
	if c.Issuer == nil {
		return "", nil
	}
	return *c.Issuer, nil
}
func (c *wireClaims) GetSubject() (string, error) {
	if c.Subject == nil {
		return "", nil
	}
	return *c.Subject, nil
}
func (c *wireClaims) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }

// Issuer mints signed token pairs for authenticated members.
type Issuer struct {
	keys *KeyPair
	cfg  config.JWTConfig
	now  func() time.Time
}

// NewIssuer creates an issuer over the given key pair. keys may be nil
// when no key material is configured; every Issue call then returns a
// SigningError.
func NewIssuer(keys *KeyPair, cfg config.JWTConfig) *Issuer {
	return &Issuer{keys: keys, cfg: cfg, now: time.Now}
}

// Issue signs a single token of the given kind for member and returns both
// the encoded token and its claims. The subject is the member's short
// username; the validity window depends on the kind.
func (i *Issuer) Issue(member domain.Member, kind TokenKind) (string, Claims, error) {
	if i.keys == nil || i.keys.Private == nil {
		return "", Claims{}, &domain.SigningError{Err: errors.New("no private key configured")}
	}
	validity := i.cfg.Expiration
	if kind == RenewalToken {
		validity = i.cfg.RenewalExpiration
	}
	claims := Claims{
		Subject:   member.Username,
		Issuer:    i.cfg.Issuer,
		ExpiresAt: i.now().Add(validity).Unix(),
		Renewal:   kind == RenewalToken,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS512, claims).SignedString(i.keys.Private)
	if err != nil {
		return "", Claims{}, &domain.SigningError{Err: err}
	}
	return signed, claims, nil
}

// IssuePair mints the access and renewal tokens handed out by a successful
// login. Both tokens carry independent claims and signatures.
func (i *Issuer) IssuePair(member domain.Member) (access, renewal string, err error) {
	access, _, err = i.Issue(member, AccessToken)
	if err != nil {
		return "", "", err
	}
	renewal, _, err = i.Issue(member, RenewalToken)
	if err != nil {
		return "", "", err
	}
	return access, renewal, nil
}

// Validator decodes bearer tokens and resolves them to cached members.
type Validator struct {
	keys  *KeyPair
	cache *roster.Cache
}

// NewValidator creates a validator over the given key pair and member
// cache. keys may be nil; every Decode call then fails.
func NewValidator(keys *KeyPair, cache *roster.Cache) *Validator {
	return &Validator{keys: keys, cache: cache}
}

// Decode verifies the token's signature and expiry and returns its claims.
// Only RS512 signatures are accepted and all four claims must be present.
// Every failure mode is reported as a TokenError.
func (v *Validator) Decode(token string) (Claims, error) {
	if v.keys == nil || v.keys.Public == nil {
		return Claims{}, &domain.TokenError{Reason: "no public key configured"}
	}
	var wire wireClaims
	_, err := jwt.ParseWithClaims(token, &wire,
		func(*jwt.Token) (any, error) { return v.keys.Public, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS512.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, &domain.TokenError{Reason: "verification failed", Err: err}
	}
	if wire.Subject == nil || wire.Issuer == nil || wire.ExpiresAt == nil || wire.Renewal == nil {
		return Claims{}, &domain.TokenError{Reason: "missing mandatory claim"}
	}
	return Claims{
		Subject:   *wire.Subject,
		Issuer:    *wire.Issuer,
		ExpiresAt: wire.ExpiresAt.Unix(),
		Renewal:   *wire.Renewal,
	}, nil
}

// Resolve checks that decoded claims are of the expected kind and looks
// the subject up in the member cache. The split from Decode is deliberate:
// signature and expiry verification is pure, subject resolution depends on
// the live cache. A subject that has left the directory since issuance no
// longer resolves.
func (v *Validator) Resolve(claims Claims, kind TokenKind) (domain.Member, error) {
	if claims.Renewal != (kind == RenewalToken) {
		return domain.Member{}, &domain.TokenError{Reason: "not a valid " + kind.String() + " token"}
	}
	member, ok := v.cache.Find(claims.Subject)
	if !ok {
		return domain.Member{}, &domain.TokenError{Reason: "unknown subject"}
	}
	return member, nil
}
