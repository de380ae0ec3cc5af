package auth

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ridgeline/accessd/internal/policy"
)

// Cookie is an opaque enciphered credential carried by a browser session.
type Cookie struct {
	Name  string
	Value string
}

// BearerToken is an opaque enciphered credential carried by an
// Authorization header.
type BearerToken struct {
	Value       string
	Description string
}

// TokenRequest describes a bearer token or cookie mint request.
type TokenRequest struct {
	UserPass    policy.UserPass
	Description string
	LifetimeSec int64
}

// Clock returns the current unix time in seconds. It is injected so tests
// can control expiry deterministically.
type Clock func() int64

// Authenticator resolves credentials (userpass, Basic/Bearer header,
// cookie) against a frozen subject/password domain and mints new
// cookies/tokens.
type Authenticator struct {
	subjects   policy.SubjectDomain
	passwords  policy.PasswordDomain
	cipher     Cipher
	cookieName string
	clock      Clock
}

// New builds an Authenticator. cookieName defaults to "authsession" when
// empty.
func New(subjects policy.SubjectDomain, passwords policy.PasswordDomain, cipher Cipher, cookieName string, clock Clock) *Authenticator {
	if cookieName == "" {
		cookieName = "authsession"
	}
	return &Authenticator{
		subjects:   subjects,
		passwords:  passwords,
		cipher:     cipher,
		cookieName: cookieName,
		clock:      clock,
	}
}

// CookieName reports the configured session cookie name.
func (a *Authenticator) CookieName() string { return a.cookieName }

// AuthUserpass verifies a plaintext username/password pair against the
// password domain. It returns ok=false on any mismatch — unknown user, no
// password record, or wrong password — never an error.
func (a *Authenticator) AuthUserpass(up policy.UserPass) (policy.UserPass, bool) {
	if _, ok := a.subjects.Users[up.Username]; !ok {
		return policy.UserPass{}, false
	}
	record, ok := a.passwords.Passwords[up.Username]
	if !ok {
		return policy.UserPass{}, false
	}
	if record.Username != up.Username || record.Password != up.Password {
		return policy.UserPass{}, false
	}
	return up, true
}

// AuthCookie verifies a cookie by deciphering its value as a token secret.
func (a *Authenticator) AuthCookie(c Cookie) (policy.UserPass, bool) {
	return a.AuthToken(c.Value)
}

// AuthToken verifies a bearer token value by deciphering it as a token
// secret, then re-checking the userpass against the password domain (a
// token only ever proves who it was minted for; the password domain
// remains the source of truth).
func (a *Authenticator) AuthToken(value string) (policy.UserPass, bool) {
	up, ok := a.secretToUserpass(value)
	if !ok {
		return policy.UserPass{}, false
	}
	return a.AuthUserpass(up)
}

var (
	basicHeaderRe  = regexp.MustCompile(`^Basic +(\S+)$`)
	bearerHeaderRe = regexp.MustCompile(`^Bearer +(\S+)$`)
)

// Authenticate tries, in order, a directly supplied userpass, a Basic
// Authorization header, a Bearer Authorization header, then a cookie,
// returning the first success. The header is matched against the scheme
// regex first: only a header that actually matches "^Basic +(\S+)$" (or
// Bearer) is treated as that scheme at all, and once matched, failure is
// terminal — it does not fall through to Bearer or to the cookie.
func (a *Authenticator) Authenticate(userpass *policy.UserPass, authHeader string, cookieValue string) (policy.UserPass, bool) {
	if userpass != nil {
		if up, ok := a.AuthUserpass(*userpass); ok {
			return up, true
		}
	}

	if m := basicHeaderRe.FindStringSubmatch(authHeader); m != nil {
		up, ok := decodeBasic(m[1])
		if !ok {
			return policy.UserPass{}, false
		}
		return a.AuthUserpass(up)
	}
	if m := bearerHeaderRe.FindStringSubmatch(authHeader); m != nil {
		return a.AuthToken(m[1])
	}

	if cookieValue != "" {
		return a.AuthCookie(Cookie{Name: a.cookieName, Value: cookieValue})
	}
	return policy.UserPass{}, false
}

// decodeBasic decodes a Basic credential payload ("base64(user:pass)")
// into a UserPass, grounded on the same split-on-first-colon convention
// used elsewhere in the corpus for Basic credentials.
func decodeBasic(payload string) (policy.UserPass, bool) {
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return policy.UserPass{}, false
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return policy.UserPass{}, false
	}
	return policy.UserPass{Username: parts[0], Password: parts[1]}, true
}

// secretToUserpass deciphers secret and parses it as the six-field token
// layout: "5:<username>:<issued>:<lifetime>:<expiry>:<password>". Any
// parse failure or expiry returns ok=false, never an error.
func (a *Authenticator) secretToUserpass(secret string) (policy.UserPass, bool) {
	plaintext, err := a.cipher.Decipher(secret)
	if err != nil {
		return policy.UserPass{}, false
	}
	// maxsplit=5 semantics: the password field may itself contain ":", so
	// split into at most 6 pieces and let the last one absorb the rest.
	parts := strings.SplitN(string(plaintext), ":", 6)
	if len(parts) != 6 {
		return policy.UserPass{}, false
	}
	nFields, username, issuedStr, lifetimeStr, expiryStr, password := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]
	if nFields != "5" {
		return policy.UserPass{}, false
	}
	if _, err := strconv.ParseInt(issuedStr, 10, 64); err != nil {
		return policy.UserPass{}, false
	}
	lifetime, err := strconv.ParseInt(lifetimeStr, 10, 64)
	if err != nil {
		return policy.UserPass{}, false
	}
	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return policy.UserPass{}, false
	}
	if expiry != 0 && lifetime != 0 && a.clock() >= expiry {
		return policy.UserPass{}, false
	}
	return policy.UserPass{Username: username, Password: password}, true
}

// authRequestToSecret enciphers a TokenRequest into the opaque token
// plaintext layout.
func (a *Authenticator) authRequestToSecret(req TokenRequest) (string, error) {
	issued := a.clock()
	var expiry int64
	if req.LifetimeSec != 0 {
		expiry = issued + req.LifetimeSec
	}
	plaintext := fmt.Sprintf("5:%s:%d:%d:%d:%s", req.UserPass.Username, issued, req.LifetimeSec, expiry, req.UserPass.Password)
	return a.cipher.Encipher([]byte(plaintext))
}

// AuthRequestCookie mints a Cookie carrying req's credentials.
func (a *Authenticator) AuthRequestCookie(req TokenRequest) (Cookie, error) {
	secret, err := a.authRequestToSecret(req)
	if err != nil {
		return Cookie{}, err
	}
	return Cookie{Name: a.cookieName, Value: secret}, nil
}

// AuthRequestToken mints a BearerToken carrying req's credentials.
func (a *Authenticator) AuthRequestToken(req TokenRequest) (BearerToken, error) {
	secret, err := a.authRequestToSecret(req)
	if err != nil {
		return BearerToken{}, err
	}
	return BearerToken{Value: secret, Description: req.Description}, nil
}
