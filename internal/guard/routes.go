package guard

import (
	"strings"

	"github.com/angelmondragon/storefront/pkg/enums"
)

const (
	PathHome             = "/"
	PathLogin            = "/login"
	PathSignup           = "/signup"
	PathProducts         = "/products"
	PathProduct          = "/products/:id"
	PathCart             = "/cart"
	PathCheckout         = "/checkout"
	PathWishlist         = "/wishlist"
	PathAccount          = "/account"
	PathAdminDashboard   = "/admin/dashboard"
	PathAdminProducts    = "/admin/products"
	PathAdminProductEdit = "/admin/products/:id"
	PathUnauthorized     = "/unauthorized"
	PathLoading          = "/loading"
	PathNotFound         = "/not-found"
)

// Route describes one destination. Public routes bypass every other rule; a non-empty
// Allowed set restricts the destination to those roles.
type Route struct {
	Path    string
	Public  bool
	Allowed []enums.Role
}

// DefaultRoutes returns the storefront's destinations.
func DefaultRoutes() []Route {
	signedIn := []enums.Role{enums.RoleUser, enums.RoleAdmin}
	adminOnly := []enums.Role{enums.RoleAdmin}

	return []Route{
		{Path: PathHome},
		{Path: PathLogin},
		{Path: PathSignup},
		{Path: PathProducts},
		{Path: PathProduct},
		{Path: PathCart},
		{Path: PathCheckout},
		{Path: PathWishlist, Allowed: signedIn},
		{Path: PathAccount, Allowed: signedIn},
		{Path: PathAdminDashboard, Allowed: adminOnly},
		{Path: PathAdminProducts, Allowed: adminOnly},
		{Path: PathAdminProductEdit, Allowed: adminOnly},
		{Path: PathUnauthorized, Public: true},
		{Path: PathLoading, Public: true},
		{Path: PathNotFound, Public: true},
	}
}

func (r Route) matches(destination string) bool {
	want := splitPath(r.Path)
	got := splitPath(destination)
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if strings.HasPrefix(want[i], ":") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

func (r Route) allows(role enums.Role) bool {
	for _, allowed := range r.Allowed {
		if allowed == role {
			return true
		}
	}
	return false
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// normalize strips query strings and trailing slashes so "/cart/?x=1" is "/cart".
func normalize(destination string) string {
	d := strings.TrimSpace(destination)
	if i := strings.IndexAny(d, "?#"); i >= 0 {
		d = d[:i]
	}
	if d == "" {
		return PathHome
	}
	if !strings.HasPrefix(d, "/") {
		d = "/" + d
	}
	if len(d) > 1 {
		d = strings.TrimRight(d, "/")
		if d == "" {
			d = PathHome
		}
	}
	return d
}

func hasPrefix(destination, prefix string) bool {
	return destination == prefix || strings.HasPrefix(destination, prefix+"/")
}
