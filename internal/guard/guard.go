package guard

import (
	"slices"

	"github.com/angelmondragon/storefront/internal/session"
	"github.com/angelmondragon/storefront/pkg/enums"
)

// Outcome is what the caller should show for a destination.
type Outcome int

const (
	OutcomeRender Outcome = iota
	OutcomeLoading
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRender:
		return "render"
	case OutcomeLoading:
		return "loading"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision carries the outcome and, for redirects, where to go instead.
type Decision struct {
	Outcome Outcome
	Target  string
}

// Options overrides the special destinations used by the guard.
type Options struct {
	Home             string
	AdminLanding     string
	Unauthorized     string
	SignedInPrefixes []string
	// PrefixRoles restricts every destination under a prefix to the listed
	// roles, including destinations missing from the route table.
	PrefixRoles map[string][]enums.Role
}

// Guard decides access to destinations from the session state.
type Guard struct {
	routes []Route
	opts   Options
}

// New builds a guard over routes. Zero-valued options fall back to the storefront defaults.
func New(routes []Route, opts Options) *Guard {
	if opts.Home == "" {
		opts.Home = PathHome
	}
	if opts.AdminLanding == "" {
		opts.AdminLanding = PathAdminDashboard
	}
	if opts.Unauthorized == "" {
		opts.Unauthorized = PathUnauthorized
	}
	if opts.SignedInPrefixes == nil {
		opts.SignedInPrefixes = []string{"/admin", PathAccount}
	}
	if opts.PrefixRoles == nil {
		opts.PrefixRoles = map[string][]enums.Role{"/admin": {enums.RoleAdmin}}
	}
	return &Guard{routes: append([]Route(nil), routes...), opts: opts}
}

// Decide applies the rules in order: loading, public, admin landing override,
// signed-out prefixes, allowed-role sets, prefix role rules, then render.
func (g *Guard) Decide(state session.State, destination string) Decision {
	if state.Loading {
		return Decision{Outcome: OutcomeLoading}
	}

	dest := normalize(destination)
	route, known := g.Lookup(dest)
	if known && route.Public {
		return Decision{Outcome: OutcomeRender}
	}

	if state.Role == enums.RoleAdmin && dest == g.opts.Home {
		return Decision{Outcome: OutcomeRedirect, Target: g.opts.AdminLanding}
	}

	if !state.SignedIn() {
		for _, prefix := range g.opts.SignedInPrefixes {
			if hasPrefix(dest, prefix) {
				return g.unauthorized()
			}
		}
	}

	if known && len(route.Allowed) > 0 && !route.allows(state.Role) {
		return g.unauthorized()
	}
	for prefix, roles := range g.opts.PrefixRoles {
		if hasPrefix(dest, prefix) && !slices.Contains(roles, state.Role) {
			return g.unauthorized()
		}
	}
	return Decision{Outcome: OutcomeRender}
}

// Lookup finds the route matching destination.
func (g *Guard) Lookup(destination string) (Route, bool) {
	dest := normalize(destination)
	for _, r := range g.routes {
		if r.matches(dest) {
			return r, true
		}
	}
	return Route{}, false
}

func (g *Guard) unauthorized() Decision {
	return Decision{Outcome: OutcomeRedirect, Target: g.opts.Unauthorized}
}
