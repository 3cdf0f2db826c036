package auth

import "strings"

const (
	ScopeTrackerRead  = "tracker:read"
	ScopeTrackerWrite = "tracker:write"
	// ScopeTrackerAdmin guards the outbox admin routes.
	ScopeTrackerAdmin = "tracker:admin"
)

// implied lists the scopes a granted scope also satisfies.
var implied = map[string][]string{
	ScopeTrackerWrite: {ScopeTrackerRead},
}

func parseScopes(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		for _, scope := range strings.Fields(v) {
			set[scope] = struct{}{}
		}
	}
	return set
}

// HasScope reports whether the caller was granted scope directly or through
// a broader scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	if _, ok := c.Scopes[scope]; ok {
		return true
	}
	for granted := range c.Scopes {
		for _, s := range implied[granted] {
			if s == scope {
				return true
			}
		}
	}
	return false
}
