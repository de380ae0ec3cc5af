// Package policy holds the frozen domain model (users, groups, roles,
// memberships, rules, passwords), the text grammars that populate it, and
// the solver that resolves a request against it.
package policy

import "github.com/ridgeline/accessd/internal/match"

// Permission is the literal outcome carried by a Rule.
type Permission string

const (
	Allow Permission = "allow"
	Deny  Permission = "deny"
)

// Group is an immutable value record; equality is by name.
type Group struct {
	Name        string
	Description string
}

// User is an immutable value record. A user always implicitly belongs to a
// group sharing its name, by authoring convention rather than engine
// enforcement.
type User struct {
	Name        string
	Description string
	Groups      []Group
}

// InGroup reports whether the user carries a group with the given name.
func (u User) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

// Role is a named capability bundle. Matcher is only populated when the
// Role value represents a rule's role-field pattern (which may itself be a
// glob); Role entries drawn from the membership domain carry a zero
// Matcher and are compared by Name alone.
type Role struct {
	Name        string
	Description string
	Matcher     match.Matcher
}

// MemberKind distinguishes the two possible members of a Membership.
type MemberKind int

const (
	MemberUser MemberKind = iota
	MemberGroup
)

// Member is the tagged union of User|Group referenced by a Membership.
type Member struct {
	Kind MemberKind
	Name string
}

// Membership binds a role to a user or a group. The engine treats it
// strictly as "role contains member" — a role's members may only include
// other roles by the authoring convention of encoding them as groups.
type Membership struct {
	Role   Role
	Member Member
}

// Action is the verb of a request plus its compiled matcher.
type Action struct {
	Name    string
	Matcher match.Matcher
}

// Resource is the normalized absolute path of a request's target plus its
// compiled matcher.
type Resource struct {
	Name    string
	Matcher match.Matcher
}

// Rule is a (permission, action-pattern, role-pattern, resource-pattern)
// tuple. All three matchers are compiled before a Rule enters any domain.
type Rule struct {
	Permission  Permission
	Action      Action
	Role        Role
	Resource    Resource
	Description string
}

// UserPass is plaintext credential material, held in memory only.
type UserPass struct {
	Username string
	Password string
}

// DefaultDescription marks the synthetic deny-by-default rule the solver
// returns when no rule in the domain matches a request.
const DefaultDescription = "<<DEFAULT>>"
