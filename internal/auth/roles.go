package auth

import (
	"strings"

	"factura.org/internal/fault"
)

// Role is a per-organization membership role.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleEditor  Role = "editor"
	RoleFinance Role = "finance"
	RoleViewer  Role = "viewer"
)

var allRoles = map[Role]struct{}{
	RoleOwner:   {},
	RoleAdmin:   {},
	RoleManager: {},
	RoleEditor:  {},
	RoleFinance: {},
	RoleViewer:  {},
}

// ParseRole validates and normalizes a role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	if _, ok := allRoles[r]; !ok {
		return "", fault.Newf(fault.InvalidArgument, "unknown role %q", s).WithFields(map[string]string{
			"role": "must be one of owner, admin, manager, editor, finance, viewer",
		})
	}
	return r, nil
}

// Operation allow-lists. Platform admins bypass all of them.
var (
	RolesInvoiceCreate = []Role{RoleOwner, RoleAdmin, RoleManager, RoleEditor}
	RolesInvoiceUpdate = []Role{RoleOwner, RoleAdmin, RoleManager, RoleEditor, RoleFinance}
	RolesMembership    = []Role{RoleOwner, RoleAdmin}
	RolesPaymentIntent = []Role{RoleOwner, RoleAdmin, RoleManager, RoleFinance}
)
