package session

import (
	"strings"

	"github.com/angelmondragon/storefront/pkg/enums"
)

// ResolveRole derives the permission tier from the role rows recorded for an identity.
// admin outranks user; anything else, an empty result or a failed query is guest.
func ResolveRole(rows []string, err error) enums.Role {
	if err != nil || len(rows) == 0 {
		return enums.RoleGuest
	}
	hasUser := false
	for _, row := range rows {
		switch enums.Role(strings.ToLower(strings.TrimSpace(row))) {
		case enums.RoleAdmin:
			return enums.RoleAdmin
		case enums.RoleUser:
			hasUser = true
		}
	}
	if hasUser {
		return enums.RoleUser
	}
	return enums.RoleGuest
}
