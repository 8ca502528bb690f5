package authz

import "fmt"

// Scope is the breadth of records a role's holder may see or manage. The
// zero value is ScopeSelf, the narrowest.
type Scope int

const (
	ScopeSelf Scope = iota
	ScopeLocation
	ScopeAllLocations
	ScopeGlobal
)

var scopeNames = map[Scope]string{
	ScopeSelf:         "SELF",
	ScopeLocation:     "LOCATION",
	ScopeAllLocations: "ALL_LOCATIONS",
	ScopeGlobal:       "GLOBAL",
}

var scopeValues = map[string]Scope{
	"SELF":          ScopeSelf,
	"LOCATION":      ScopeLocation,
	"ALL_LOCATIONS": ScopeAllLocations,
	"GLOBAL":        ScopeGlobal,
}

// String returns the canonical upper-snake name.
func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Scope(%d)", int(s))
}

// Covers reports whether s is at least as broad as other.
func (s Scope) Covers(other Scope) bool {
	return s >= other
}

// SpansAllLocations reports whether the scope is not bound to explicit
// location membership.
func (s Scope) SpansAllLocations() bool {
	return s >= ScopeAllLocations
}

// ParseScope maps a stored scope name to its Scope value.
func ParseScope(name string) (Scope, error) {
	if s, ok := scopeValues[name]; ok {
		return s, nil
	}
	return ScopeSelf, fmt.Errorf("authz: unknown data scope %q", name)
}

// MaxScope returns the broadest scope among the arguments, ScopeSelf when
// called with none.
func MaxScope(scopes ...Scope) Scope {
	max := ScopeSelf
	for _, s := range scopes {
		if s > max {
			max = s
		}
	}
	return max
}
