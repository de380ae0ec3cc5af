// Package facade glues the authenticator, the policy solver, the
// filesystem rule loader, and the decision cache into the four
// operations a transport layer actually needs: login, auth_token,
// authenticate_request, and check_access.
package facade

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ridgeline/accessd/internal/auth"
	"github.com/ridgeline/accessd/internal/cache"
	"github.com/ridgeline/accessd/internal/match"
	"github.com/ridgeline/accessd/internal/metrics"
	"github.com/ridgeline/accessd/internal/policy"
	"github.com/ridgeline/accessd/internal/rules"
)

// Decision is the wire-facing record check_access produces.
type Decision struct {
	Permission string `json:"permission"`
	Action     string `json:"action"`
	Resource   string `json:"resource"`
	User       string `json:"user"`
	Role       string `json:"role"`
}

// Facade is the single entry point a transport binds to. Subject and
// password domains are loaded once at construction and frozen; role and
// rule domains are rebuilt on every check_access call.
type Facade struct {
	authn *auth.Authenticator

	subjects  policy.SubjectDomain
	passwords policy.PasswordDomain

	roleFile     string
	resourceRoot string

	cache    cache.DecisionCache
	cacheTTL time.Duration

	metrics *metrics.Recorder
	logger  *slog.Logger

	defaultCookieLifetime int64
	defaultTokenLifetime  int64
}

// Deps bundles the collaborators New needs beyond file paths, so tests can
// substitute an in-memory cache or a deterministic clock without touching
// the filesystem loaders.
type Deps struct {
	Cipher                auth.Cipher
	Clock                 auth.Clock
	CookieName            string
	DefaultCookieLifetime int64
	DefaultTokenLifetime  int64
	Cache                 cache.DecisionCache
	CacheTTL              time.Duration
	Metrics               *metrics.Recorder
	Logger                *slog.Logger
}

// New loads user.txt and password.txt once, validates that every password
// references a known user, checks that role.txt can be read and parsed, and
// returns a ready Facade. A missing or unreadable domain file is fatal, per
// the resolved Open Question on domain-file absence at startup.
func New(userFile, roleFile, passwordFile, resourceRoot string, deps Deps) (*Facade, error) {
	userText, err := parseFile(userFile)
	if err != nil {
		return nil, fmt.Errorf("facade: load user file: %w", err)
	}
	passwordText, err := parseFile(passwordFile)
	if err != nil {
		return nil, fmt.Errorf("facade: load password file: %w", err)
	}
	if _, err := parseFile(roleFile); err != nil {
		return nil, fmt.Errorf("facade: load role file: %w", err)
	}

	subjects := policy.BuildSubjects(userText.Users)
	passwords := policy.BuildPasswords(passwordText.Passwords)
	for username := range passwords.Passwords {
		if _, ok := subjects.Users[username]; !ok {
			return nil, fmt.Errorf("facade: password file references unknown user %q", username)
		}
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	authn := auth.New(subjects, passwords, deps.Cipher, deps.CookieName, deps.Clock)

	return &Facade{
		authn:                 authn,
		subjects:              subjects,
		passwords:             passwords,
		roleFile:              roleFile,
		resourceRoot:          resourceRoot,
		cache:                 deps.Cache,
		cacheTTL:              deps.CacheTTL,
		metrics:               deps.Metrics,
		logger:                deps.Logger,
		defaultCookieLifetime: deps.DefaultCookieLifetime,
		defaultTokenLifetime:  deps.DefaultTokenLifetime,
	}, nil
}

func parseFile(path string) (policy.ParsedText, error) {
	f, err := os.Open(path)
	if err != nil {
		return policy.ParsedText{}, err
	}
	defer f.Close()
	return policy.ParseText(f)
}

// Login verifies up and, on success, mints a session cookie described as
// "login" with the configured default cookie lifetime.
func (f *Facade) Login(up policy.UserPass) (auth.Cookie, bool) {
	_, ok := f.authn.AuthUserpass(up)
	if !ok {
		f.metrics.ObserveAuth("login", false)
		return auth.Cookie{}, false
	}
	cookie, err := f.authn.AuthRequestCookie(auth.TokenRequest{
		UserPass:    up,
		Description: "login",
		LifetimeSec: f.defaultCookieLifetime,
	})
	if err != nil {
		f.logger.Warn("login: mint cookie failed", slog.String("error", err.Error()))
		f.metrics.ObserveAuth("login", false)
		return auth.Cookie{}, false
	}
	f.metrics.ObserveAuth("login", true)
	return cookie, true
}

// AuthToken verifies req.UserPass and, on success, mints a bearer token
// carrying req's description and lifetime.
func (f *Facade) AuthToken(req auth.TokenRequest) (auth.BearerToken, bool) {
	_, ok := f.authn.AuthUserpass(req.UserPass)
	if !ok {
		f.metrics.ObserveAuth("token", false)
		return auth.BearerToken{}, false
	}
	token, err := f.authn.AuthRequestToken(req)
	if err != nil {
		f.logger.Warn("auth_token: mint token failed", slog.String("error", err.Error()))
		f.metrics.ObserveAuth("token", false)
		return auth.BearerToken{}, false
	}
	f.metrics.ObserveAuth("token", true)
	return token, true
}

// AuthenticateRequest resolves the username carried by authHeader or
// cookieValue, returning "" if neither yields a valid credential.
func (f *Facade) AuthenticateRequest(authHeader, cookieValue string) string {
	up, ok := f.authn.Authenticate(nil, authHeader, cookieValue)
	if !ok {
		return ""
	}
	return up.Username
}

// CookieName reports the configured session cookie name.
func (f *Facade) CookieName() string { return f.authn.CookieName() }

// loadRoles re-reads the role file fresh for every call, per the
// "role and rule domains are rebuilt per request" concurrency model. A
// read or parse failure at request time is not fatal (only a missing
// domain file at startup is): it is logged and treated as an empty role
// domain, which denies every request via the solver's default rule
// rather than crashing the server.
func (f *Facade) loadRoles() policy.RoleDomain {
	text, err := parseFile(f.roleFile)
	if err != nil {
		f.logger.Warn("check_access: role file reload failed", slog.String("error", err.Error()))
		return policy.RoleDomain{}
	}
	roles := policy.BuildRoles(text.Members)
	for _, m := range roles.Memberships {
		if m.Member.Kind != policy.MemberUser {
			continue
		}
		if _, ok := f.subjects.Users[m.Member.Name]; !ok {
			f.logger.Warn("check_access: role file membership references unknown user",
				slog.String("user", m.Member.Name))
			return policy.RoleDomain{}
		}
	}
	return roles
}

// CheckAccess resolves username, normalizes resource, rebuilds the
// request-scoped Domain, and invokes the solver. A decision-cache hit
// short-circuits straight to producing the record; a miss, a disabled
// cache, or a cache error all fall through to running the solver and
// never fail the request.
func (f *Facade) CheckAccess(ctx context.Context, action, resource, authHeader, cookieValue string) (Decision, int) {
	start := time.Now()
	username := f.AuthenticateRequest(authHeader, cookieValue)
	resource = match.NormalizeResource(resource)

	loaded, err := rules.Load(f.resourceRoot, resource)
	if err != nil {
		// A matcher compile failure is an internal programming error, not a
		// request-shaped failure; it propagates as a server error rather
		// than masquerading as a deny decision.
		f.logger.Error("check_access: rule load failed", slog.String("error", err.Error()))
		f.observeDecision(action, "error", false, start)
		return Decision{}, 500
	}
	key := cache.Key(action, resource, username, loaded.NewestMod.Unix())
	if entry, ok := f.cacheLookup(ctx, key); ok {
		record := Decision{Permission: entry.Permission, Action: action, Resource: resource, User: username, Role: entry.Role}
		f.observeDecision(action, entry.Permission, true, start)
		return record, statusFor(entry.Permission)
	}

	roles := f.loadRoles()
	domain := policy.Domain{
		Subjects:  f.subjects,
		Roles:     roles,
		Rules:     loaded.Domain,
		Passwords: f.passwords,
	}

	var user policy.User
	if username != "" {
		user = f.subjects.Users[username]
		user.Name = username
	}

	rule := policy.Solve(domain, policy.Request{Action: action, Resource: resource, User: user})
	permission := string(rule.Permission)

	record := Decision{
		Permission: permission,
		Action:     action,
		Resource:   resource,
		User:       username,
		Role:       rule.Role.Name,
	}

	f.cacheStore(ctx, key, cache.Entry{Permission: permission, Role: rule.Role.Name, Description: rule.Description})
	f.observeDecision(action, permission, false, start)

	return record, statusFor(permission)
}

func statusFor(permission string) int {
	if permission == string(policy.Allow) {
		return 200
	}
	return 401
}

func (f *Facade) cacheLookup(ctx context.Context, key string) (cache.Entry, bool) {
	if f.cache == nil {
		return cache.Entry{}, false
	}
	entry, ok, err := f.cache.Lookup(ctx, key)
	if err != nil {
		f.logger.Warn("check_access: cache lookup failed", slog.String("error", err.Error()))
		f.metrics.ObserveCache(metrics.CacheOperationLookup, metrics.CacheResultError, 0)
		return cache.Entry{}, false
	}
	if !ok {
		f.metrics.ObserveCache(metrics.CacheOperationLookup, metrics.CacheResultMiss, 0)
		return cache.Entry{}, false
	}
	f.metrics.ObserveCache(metrics.CacheOperationLookup, metrics.CacheResultHit, 0)
	return entry, true
}

func (f *Facade) cacheStore(ctx context.Context, key string, entry cache.Entry) {
	if f.cache == nil {
		return
	}
	now := time.Now().UTC()
	entry.StoredAt = now
	entry.ExpiresAt = now.Add(f.cacheTTL)
	if err := f.cache.Store(ctx, key, entry); err != nil {
		f.logger.Warn("check_access: cache store failed", slog.String("error", err.Error()))
		f.metrics.ObserveCache(metrics.CacheOperationStore, metrics.CacheResultError, 0)
		return
	}
	f.metrics.ObserveCache(metrics.CacheOperationStore, metrics.CacheResultStored, 0)
}

func (f *Facade) observeDecision(action, permission string, fromCache bool, start time.Time) {
	f.metrics.ObserveDecision(action, permission, fromCache, time.Since(start))
}
