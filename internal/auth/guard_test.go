package auth

import (
	"testing"

	"factura.org/internal/fault"
)

func member(role Role) *Identity {
	return &Identity{
		UID: "uid-1",
		Claims: Claims{
			Organizations: []string{"org-1"},
			OrgRoles:      map[string]Role{"org-1": role},
		},
	}
}

func TestRequireAuthenticated(t *testing.T) {
	if err := RequireAuthenticated(nil); fault.KindOf(err) != fault.Unauthenticated {
		t.Fatalf("nil identity: %v", err)
	}
	if err := RequireAuthenticated(&Identity{}); fault.KindOf(err) != fault.Unauthenticated {
		t.Fatalf("empty uid: %v", err)
	}
	if err := RequireAuthenticated(member(RoleViewer)); err != nil {
		t.Fatalf("authenticated: %v", err)
	}
}

func TestRequireMember(t *testing.T) {
	if err := RequireMember(member(RoleViewer), "org-1"); err != nil {
		t.Fatalf("member denied: %v", err)
	}
	if err := RequireMember(member(RoleViewer), "org-2"); fault.KindOf(err) != fault.PermissionDenied {
		t.Fatalf("non-member: %v", err)
	}
	platform := &Identity{UID: "root", Claims: Claims{PlatformAdmin: true}}
	if err := RequireMember(platform, "org-2"); err != nil {
		t.Fatalf("platform admin denied: %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	if err := RequireRole(member(RoleEditor), "org-1", RolesInvoiceCreate...); err != nil {
		t.Fatalf("editor create: %v", err)
	}
	if err := RequireRole(member(RoleViewer), "org-1", RolesInvoiceCreate...); fault.KindOf(err) != fault.PermissionDenied {
		t.Fatalf("viewer create: %v", err)
	}
	if err := RequireRole(member(RoleFinance), "org-1", RolesInvoiceCreate...); fault.KindOf(err) != fault.PermissionDenied {
		t.Fatalf("finance create: %v", err)
	}
	if err := RequireRole(member(RoleFinance), "org-1", RolesInvoiceUpdate...); err != nil {
		t.Fatalf("finance update: %v", err)
	}
	if err := RequireRole(member(RoleFinance), "org-1", RolesPaymentIntent...); err != nil {
		t.Fatalf("finance intent: %v", err)
	}
	if err := RequireRole(member(RoleManager), "org-1", RolesMembership...); fault.KindOf(err) != fault.PermissionDenied {
		t.Fatalf("manager membership: %v", err)
	}
	platform := &Identity{UID: "root", Claims: Claims{PlatformAdmin: true}}
	if err := RequireRole(platform, "org-1", RolesMembership...); err != nil {
		t.Fatalf("platform admin role: %v", err)
	}
}

func TestRequirePlatformAdmin(t *testing.T) {
	if err := RequirePlatformAdmin(member(RoleOwner)); fault.KindOf(err) != fault.PermissionDenied {
		t.Fatalf("owner is not platform admin: %v", err)
	}
	platform := &Identity{UID: "root", Claims: Claims{PlatformAdmin: true}}
	if err := RequirePlatformAdmin(platform); err != nil {
		t.Fatalf("platform admin: %v", err)
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(" Finance "); err != nil || r != RoleFinance {
		t.Fatalf("parse finance: %v %v", r, err)
	}
	if _, err := ParseRole("superuser"); fault.KindOf(err) != fault.InvalidArgument {
		t.Fatalf("unknown role: %v", err)
	}
}
