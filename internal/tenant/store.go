package tenant

import (
	"context"

	"factura.org/internal/auth"
)

// Store persists organizations and memberships. Membership mutations update
// the member row and the user record's organizations/orgRoles together in
// one transaction so the two views cannot drift apart mid-write.
type Store interface {
	// Provision creates the organization, its invoice counter, the owner
	// membership and the owner's user-record membership atomically.
	Provision(ctx context.Context, org *Organization, owner Member) error

	GetOrganization(ctx context.Context, orgID string) (*Organization, error)
	SaveOrganization(ctx context.Context, org *Organization) error
	ListOrganizations(ctx context.Context) ([]*Organization, error)

	// SetMember upserts the member row and the matching user-record entry.
	SetMember(ctx context.Context, orgID string, member Member) error
	// RemoveMember deletes the member row and strips the user-record entry.
	RemoveMember(ctx context.Context, orgID, uid string) error
	ListMembers(ctx context.Context, orgID string) ([]Member, error)
	MemberRole(ctx context.Context, orgID, uid string) (auth.Role, error)
}
