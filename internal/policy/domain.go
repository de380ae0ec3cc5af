package policy

import (
	"fmt"
	"strings"

	"github.com/ridgeline/accessd/internal/match"
)

// SubjectDomain holds every known user and group.
type SubjectDomain struct {
	Users  map[string]User
	Groups map[string]Group
}

// RoleDomain holds every known role and the membership edges between roles
// and users/groups.
type RoleDomain struct {
	Roles       map[string]Role
	Memberships []Membership
}

// RolesForUser returns the distinct roles reachable from u, either by a
// direct membership naming the user or by a membership naming a group the
// user belongs to.
func (rd RoleDomain) RolesForUser(u User) []Role {
	seen := make(map[string]Role)
	for _, m := range rd.Memberships {
		switch m.Member.Kind {
		case MemberUser:
			if m.Member.Name == u.Name {
				seen[m.Role.Name] = m.Role
			}
		case MemberGroup:
			if u.InGroup(m.Member.Name) {
				seen[m.Role.Name] = m.Role
			}
		}
	}
	roles := make([]Role, 0, len(seen))
	for _, r := range seen {
		roles = append(roles, r)
	}
	return roles
}

// RuleDomain holds the ordered rule set. Order is significant: the solver
// resolves a request against the first matching rule.
type RuleDomain struct {
	Rules []Rule
}

// PasswordDomain holds plaintext credentials keyed by username.
type PasswordDomain struct {
	Passwords map[string]UserPass
}

// Domain is the complete, frozen policy snapshot a request is resolved
// against.
type Domain struct {
	Subjects  SubjectDomain
	Roles     RoleDomain
	Rules     RuleDomain
	Passwords PasswordDomain
}

// BuildSubjects turns a sequence of parsed user lines into a SubjectDomain.
// A username repeated across multiple lines accumulates groups from every
// line it appears on rather than overwriting them.
func BuildSubjects(specs []UserSpec) SubjectDomain {
	users := make(map[string]User)
	groups := make(map[string]Group)

	for _, spec := range specs {
		for _, groupName := range spec.Groups {
			if _, ok := groups[groupName]; !ok {
				groups[groupName] = Group{Name: groupName}
			}
		}
		for _, userName := range spec.Users {
			u, ok := users[userName]
			if !ok {
				u = User{Name: userName}
			}
			for _, groupName := range spec.Groups {
				if !u.InGroup(groupName) {
					u.Groups = append(u.Groups, groups[groupName])
				}
			}
			users[userName] = u
		}
	}
	return SubjectDomain{Users: users, Groups: groups}
}

// BuildRoles turns a sequence of parsed member lines into a RoleDomain. A
// role field that itself lists more than one role binds the same members
// to each of them (the cartesian expansion generalizes the single-role
// case shown in the file format's examples).
func BuildRoles(specs []MemberSpec) RoleDomain {
	roles := make(map[string]Role)
	var memberships []Membership

	for _, spec := range specs {
		for _, roleName := range spec.Roles {
			if _, ok := roles[roleName]; !ok {
				roles[roleName] = Role{Name: roleName}
			}
			for _, memberName := range spec.Members {
				kind := MemberGroup
				name := memberName
				if after, ok := strings.CutPrefix(memberName, "@"); ok {
					kind = MemberUser
					name = after
				}
				memberships = append(memberships, Membership{
					Role:   roles[roleName],
					Member: Member{Kind: kind, Name: name},
				})
			}
		}
	}
	return RoleDomain{Roles: roles, Memberships: memberships}
}

// BuildRules compiles a sequence of parsed rule lines into a RuleDomain.
// prefix is prepended to every resource pattern and the result is run
// through match.CleanPath before compilation, so that rule files loaded
// from nested directories apply only beneath their own subtree. Pass an
// empty prefix for rules loaded outside that filesystem context.
func BuildRules(specs []RuleSpec, prefix string) (RuleDomain, error) {
	var rules []Rule
	for _, spec := range specs {
		for _, actionPattern := range spec.Actions {
			actionMatcher, err := match.Compile(actionPattern, match.StarAlwaysMatches())
			if err != nil {
				return RuleDomain{}, fmt.Errorf("policy: rule action: %w", err)
			}
			for _, rolePattern := range spec.Roles {
				roleMatcher, err := match.Compile(rolePattern, match.StarAlwaysMatches())
				if err != nil {
					return RuleDomain{}, fmt.Errorf("policy: rule role: %w", err)
				}
				for _, resourcePattern := range spec.Resources {
					rewritten := match.CleanPath(prefix + resourcePattern)
					resourceMatcher, err := match.Compile(rewritten)
					if err != nil {
						return RuleDomain{}, fmt.Errorf("policy: rule resource: %w", err)
					}
					rules = append(rules, Rule{
						Permission: Permission(spec.Permission),
						Action:     Action{Name: actionPattern, Matcher: actionMatcher},
						Role:       Role{Name: rolePattern, Matcher: roleMatcher},
						Resource:   Resource{Name: rewritten, Matcher: resourceMatcher},
					})
				}
			}
		}
	}
	return RuleDomain{Rules: rules}, nil
}

// BuildPasswords turns a sequence of parsed password lines into a
// PasswordDomain. When a username repeats, the last line wins.
func BuildPasswords(specs []PasswordSpec) PasswordDomain {
	passwords := make(map[string]UserPass, len(specs))
	for _, spec := range specs {
		passwords[spec.Username] = UserPass{Username: spec.Username, Password: spec.Password}
	}
	return PasswordDomain{Passwords: passwords}
}

// NewDomain assembles a Domain from already-parsed text and validates its
// cross-references: every user named by a membership or a password line
// must exist in the subject domain.
func NewDomain(text ParsedText, rulePrefix string) (Domain, error) {
	subjects := BuildSubjects(text.Users)
	roles := BuildRoles(text.Members)
	rules, err := BuildRules(text.Rules, rulePrefix)
	if err != nil {
		return Domain{}, err
	}
	passwords := BuildPasswords(text.Passwords)

	for _, m := range roles.Memberships {
		if m.Member.Kind != MemberUser {
			continue
		}
		if _, ok := subjects.Users[m.Member.Name]; !ok {
			return Domain{}, fmt.Errorf("policy: membership references unknown user %q", m.Member.Name)
		}
	}
	for username := range passwords.Passwords {
		if _, ok := subjects.Users[username]; !ok {
			return Domain{}, fmt.Errorf("policy: password references unknown user %q", username)
		}
	}

	return Domain{Subjects: subjects, Roles: roles, Rules: rules, Passwords: passwords}, nil
}
