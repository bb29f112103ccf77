package auth

import "factura.org/internal/fault"

// The guard reads exclusively from the caller's presented claims. It never
// re-fetches the user record: claims may lag the durable state until the
// caller's next token refresh (bounded by the token TTL), which is the
// deliberate latency/consistency tradeoff of this design.

// RequireAuthenticated fails when no caller identity is present.
func RequireAuthenticated(id *Identity) error {
	if id == nil || id.UID == "" {
		return fault.New(fault.Unauthenticated, "authentication required")
	}
	return nil
}

// RequireMember ensures the caller belongs to the organization or is a
// platform admin.
func RequireMember(id *Identity, orgID string) error {
	if err := RequireAuthenticated(id); err != nil {
		return err
	}
	if id.Claims.PlatformAdmin {
		return nil
	}
	if !id.Claims.MemberOf(orgID) {
		return fault.New(fault.PermissionDenied, "missing organization access")
	}
	return nil
}

// RequireRole ensures the caller holds one of the allowed roles within the
// organization, or is a platform admin.
func RequireRole(id *Identity, orgID string, allowed ...Role) error {
	if err := RequireAuthenticated(id); err != nil {
		return err
	}
	if id.Claims.PlatformAdmin {
		return nil
	}
	role, ok := id.Claims.RoleIn(orgID)
	if !ok {
		return fault.New(fault.PermissionDenied, "insufficient role for operation")
	}
	for _, a := range allowed {
		if role == a {
			return nil
		}
	}
	return fault.New(fault.PermissionDenied, "insufficient role for operation")
}

// RequirePlatformAdmin gates platform-wide administration.
func RequirePlatformAdmin(id *Identity) error {
	if err := RequireAuthenticated(id); err != nil {
		return err
	}
	if !id.Claims.PlatformAdmin {
		return fault.New(fault.PermissionDenied, "platform admin privileges required")
	}
	return nil
}
