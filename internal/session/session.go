// Package session resolves the identity a capture browses with. Identity
// sources are tried in a fixed order of explicitness; the first one the
// caller supplied wins.
package session

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"

	"x-post-capture/internal/document"
)

// Kind names an identity source.
type Kind string

const (
	KindCookieFile   Kind = "cookie_file"
	KindCookieString Kind = "cookie_string"
	KindTokenPair    Kind = "token_pair"
	KindProfile      Kind = "profile"
	KindAnonymous    Kind = "anonymous"
)

// Cookie names that must be present for an explicit cookie identity.
const (
	AuthTokenCookie = "auth_token"
	CSRFCookie      = "ct0"
)

// CookieDomains receive every injected cookie; some flows still hit the
// legacy domain.
var CookieDomains = []string{".x.com", ".twitter.com"}

var httpOnlyCookies = map[string]bool{AuthTokenCookie: true, "_twitter_sess": true}

// Cookie is one browser cookie. Its value never leaves the process through
// String or log encoding.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	HTTPOnly bool
	Secure   bool
}

func (c Cookie) String() string { return c.Name + "=<redacted>@" + c.Domain }

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (c Cookie) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", c.Name)
	enc.AddString("domain", c.Domain)
	return nil
}

// Identity is the resolved browsing identity.
type Identity struct {
	Kind       Kind
	ProfileDir string
	Cookies    []Cookie
	Headers    map[string]string
}

// Authenticated reports whether some identity source was resolved.
func (i *Identity) Authenticated() bool { return i != nil && i.Kind != KindAnonymous }

func (i *Identity) String() string {
	return fmt.Sprintf("identity(kind=%s cookies=%d profile=%q)", i.Kind, len(i.Cookies), i.ProfileDir)
}

// MarshalLogObject implements zapcore.ObjectMarshaler. Cookie values and
// header values are omitted.
func (i *Identity) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", string(i.Kind))
	enc.AddString("profile_dir", i.ProfileDir)
	enc.AddInt("cookies", len(i.Cookies))
	names := make([]string, 0, len(i.Headers))
	for k := range i.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	enc.AddString("headers", strings.Join(names, ","))
	return nil
}

// Source is one link in the identity chain.
type Source interface {
	Kind() Kind
	// Supplied reports whether the caller provided this source at all.
	Supplied() bool
	// Resolve builds the identity. A supplied source that cannot be used
	// returns an error wrapping document.ErrAuthUnavailable.
	Resolve() (*Identity, error)
}

// Provider walks the source chain.
type Provider struct {
	profileDir string
	sources    []Source
}

// NewProvider builds a provider over sources in precedence order. profileDir
// is attached to whatever identity is resolved so the browser can persist
// its state there.
func NewProvider(profileDir string, sources ...Source) *Provider {
	return &Provider{profileDir: profileDir, sources: sources}
}

// Options are the raw identity inputs from flags, config and environment.
type Options struct {
	ProfileDir   string
	CookieFile   string
	CookieString string
	AuthToken    string
	CSRFToken    string
	// Extra cookies (twid, att, lang) merged into explicit cookie identities.
	Extra map[string]string
}

// FromOptions builds the standard chain: cookie file, cookie string, token
// pair, persisted profile.
func FromOptions(o Options) *Provider {
	return NewProvider(o.ProfileDir,
		CookieFile{Path: o.CookieFile, Extra: o.Extra},
		CookieString{Raw: o.CookieString, Extra: o.Extra},
		TokenPair{AuthToken: o.AuthToken, CSRFToken: o.CSRFToken, Extra: o.Extra},
		Profile{Dir: o.ProfileDir},
	)
}

// Resolve returns the identity of the first supplied source, or an anonymous
// identity when no source was supplied.
func (p *Provider) Resolve() (*Identity, error) {
	for _, s := range p.sources {
		if s == nil || !s.Supplied() {
			continue
		}
		id, err := s.Resolve()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Kind(), err)
		}
		id.ProfileDir = p.profileDir
		return id, nil
	}
	return &Identity{Kind: KindAnonymous, ProfileDir: p.profileDir}, nil
}

// ParseCookieString parses "name=value; name=value" into a map. Items
// without '=' or with an empty name are ignored.
func ParseCookieString(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

// cookieIdentity validates a cookie map and expands it over CookieDomains.
func cookieIdentity(kind Kind, values, extra map[string]string) (*Identity, error) {
	merged := make(map[string]string, len(values)+len(extra))
	for k, v := range extra {
		if v != "" {
			merged[k] = v
		}
	}
	for k, v := range values {
		if v != "" {
			merged[k] = v
		}
	}
	if merged[AuthTokenCookie] == "" || merged[CSRFCookie] == "" {
		return nil, fmt.Errorf("%w: cookies must include %s and %s",
			document.ErrAuthUnavailable, AuthTokenCookie, CSRFCookie)
	}

	names := make([]string, 0, len(merged))
	for k := range merged {
		names = append(names, k)
	}
	sort.Strings(names)

	id := &Identity{
		Kind: kind,
		Headers: map[string]string{
			"x-csrf-token":          merged[CSRFCookie],
			"x-twitter-active-user": "yes",
			"x-twitter-auth-type":   "OAuth2Session",
		},
	}
	for _, domain := range CookieDomains {
		for _, name := range names {
			id.Cookies = append(id.Cookies, Cookie{
				Name:     name,
				Value:    merged[name],
				Domain:   domain,
				Path:     "/",
				HTTPOnly: httpOnlyCookies[name],
				Secure:   true,
			})
		}
	}
	return id, nil
}

// CookieFile reads a raw cookie string from a file.
type CookieFile struct {
	Path  string
	Extra map[string]string
}

func (s CookieFile) Kind() Kind     { return KindCookieFile }
func (s CookieFile) Supplied() bool { return strings.TrimSpace(s.Path) != "" }

func (s CookieFile) Resolve() (*Identity, error) {
	b, err := os.ReadFile(strings.TrimSpace(s.Path))
	if err != nil {
		return nil, fmt.Errorf("%w: read cookie file: %v", document.ErrAuthUnavailable, err)
	}
	return cookieIdentity(KindCookieFile, ParseCookieString(string(b)), s.Extra)
}

// CookieString is a raw cookie header copied from a logged-in session.
type CookieString struct {
	Raw   string
	Extra map[string]string
}

func (s CookieString) Kind() Kind     { return KindCookieString }
func (s CookieString) Supplied() bool { return strings.TrimSpace(s.Raw) != "" }

func (s CookieString) Resolve() (*Identity, error) {
	return cookieIdentity(KindCookieString, ParseCookieString(s.Raw), s.Extra)
}

// TokenPair is an explicit auth_token and csrf token.
type TokenPair struct {
	AuthToken string
	CSRFToken string
	Extra     map[string]string
}

func (s TokenPair) Kind() Kind { return KindTokenPair }

func (s TokenPair) Supplied() bool {
	return strings.TrimSpace(s.AuthToken) != "" || strings.TrimSpace(s.CSRFToken) != ""
}

func (s TokenPair) Resolve() (*Identity, error) {
	return cookieIdentity(KindTokenPair, map[string]string{
		AuthTokenCookie: strings.TrimSpace(s.AuthToken),
		CSRFCookie:      strings.TrimSpace(s.CSRFToken),
	}, s.Extra)
}

// Profile is a persisted browser profile directory from an earlier login.
type Profile struct {
	Dir string
}

func (s Profile) Kind() Kind { return KindProfile }

// Supplied reports whether the directory exists and holds browser state.
func (s Profile) Supplied() bool {
	if s.Dir == "" {
		return false
	}
	entries, err := os.ReadDir(s.Dir)
	return err == nil && len(entries) > 0
}

func (s Profile) Resolve() (*Identity, error) {
	return &Identity{Kind: KindProfile}, nil
}
