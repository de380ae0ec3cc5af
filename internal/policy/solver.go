package policy

import "github.com/ridgeline/accessd/internal/match"

// Request is the (action, resource, subject) triple the solver resolves.
type Request struct {
	Action   string
	Resource string
	User     User
}

// defaultRule builds the deny-by-default fallback, preserving the
// request's own action and resource as required by the solver contract.
func defaultRule(req Request, resource string) Rule {
	always, _ := match.Compile("*", match.StarAlwaysMatches())
	return Rule{
		Permission:  Deny,
		Action:      Action{Name: req.Action, Matcher: always},
		Role:        Role{Name: "*", Matcher: always},
		Resource:    Resource{Name: resource, Matcher: always},
		Description: DefaultDescription,
	}
}

// Solve returns the first rule in domain.Rules whose action matches
// req.Action, whose resource matches req.Resource, and whose role matches
// the name of at least one role reachable from req.User. Resolution is
// deterministic: rule order is the order the rules were loaded in, and the
// first match wins regardless of permission. A falsy action name or a
// zero-value user short-circuits straight to the default rule without
// consulting the role domain. If nothing matches, Solve returns the
// deny-by-default rule, carrying the request's own action and resource.
func Solve(domain Domain, req Request) Rule {
	resource := match.NormalizeResource(req.Resource)
	if req.Action == "" || req.User.Name == "" {
		return defaultRule(req, resource)
	}

	userRoles := domain.Roles.RolesForUser(req.User)
	for _, rule := range domain.Rules {
		if !rule.Action.Matcher.Match(req.Action) {
			continue
		}
		if !rule.Resource.Matcher.Match(resource) {
			continue
		}
		if !ruleMatchesAnyRole(rule, userRoles) {
			continue
		}
		return rule
	}
	return defaultRule(req, resource)
}

func ruleMatchesAnyRole(rule Rule, roles []Role) bool {
	for _, r := range roles {
		if rule.Role.Matcher.Match(r.Name) {
			return true
		}
	}
	return false
}

// IsAllowed reports whether rule grants access.
func IsAllowed(rule Rule) bool {
	return rule.Permission == Allow
}
