package auth

import (
	"context"
	"time"
)

// UserRecord is the durable per-identity record. Created empty on first
// authentication, mutated only through the tenant service and synchronizer,
// never hard-deleted.
type UserRecord struct {
	UID           string          `json:"uid"`
	Email         string          `json:"email,omitempty"`
	Organizations []string        `json:"organizations"`
	OrgRoles      map[string]Role `json:"orgRoles"`
	PlatformAdmin bool            `json:"platformAdmin"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// UserStore persists user records and the auth provider's custom-claims bag.
type UserStore interface {
	// EnsureUser creates the empty record on first sight of a uid and
	// returns the current record otherwise.
	EnsureUser(ctx context.Context, uid, email string) (*UserRecord, error)
	FindUser(ctx context.Context, uid string) (*UserRecord, error)
	FindUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	ListUsers(ctx context.Context) ([]*UserRecord, error)

	// SaveUserClaims writes the denormalized claims fields back onto the
	// record after synchronization.
	SaveUserClaims(ctx context.Context, uid, email string, orgs []string, roles map[string]Role, platformAdmin bool) error
	// SetPlatformAdmin flips the durable flag for grant/revoke operations.
	SetPlatformAdmin(ctx context.Context, uid, email string, enabled bool) error

	// CustomClaims reads the claims bag the auth provider holds for the
	// identity; SetCustomClaims replaces it.
	CustomClaims(ctx context.Context, uid string) (Claims, error)
	SetCustomClaims(ctx context.Context, uid string, claims Claims) error
}

// Provider is the managed authentication collaborator: token verification
// plus the custom-claims store for each identity. The service owns three
// keys of the claims bag (organizations, orgRoles, platformAdmin).
type Provider interface {
	VerifyToken(ctx context.Context, token string) (Identity, error)
	GetUser(ctx context.Context, uid string) (Account, error)
	GetUserByEmail(ctx context.Context, email string) (Account, error)
	SetCustomClaims(ctx context.Context, uid string, claims Claims) error
}

// Account is the provider's view of an identity, including the claims it
// currently holds (which may lag the durable record).
type Account struct {
	UID    string
	Email  string
	Claims Claims
}
