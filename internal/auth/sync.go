package auth

import (
	"context"

	"factura.org/internal/fault"
)

// Synchronizer recomputes the canonical claims payload from the durable user
// record and writes it into both the provider's custom-claims store and back
// onto the record. It runs after every membership mutation so the two never
// diverge for more than one cycle. Active sessions pick the new claims up at
// their next token refresh.
type Synchronizer struct {
	users    UserStore
	provider Provider
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(users UserStore, provider Provider) *Synchronizer {
	return &Synchronizer{users: users, provider: provider}
}

// Sync rebuilds and applies claims for the given identity. The platformAdmin
// flag is carried through from the existing claims or record state only:
// an unrelated membership change neither drops nor grants it.
func (s *Synchronizer) Sync(ctx context.Context, uid string) error {
	rec, err := s.users.FindUser(ctx, uid)
	if err != nil {
		return fault.Wrap(fault.NotFound, "user record missing during claims sync", err)
	}
	acct, err := s.provider.GetUser(ctx, uid)
	if err != nil {
		return err
	}

	platformAdmin := acct.Claims.PlatformAdmin || rec.PlatformAdmin

	orgs := rec.Organizations
	if orgs == nil {
		orgs = []string{}
	}
	roles := rec.OrgRoles
	if roles == nil {
		roles = map[string]Role{}
	}

	claims := Claims{
		Organizations: orgs,
		OrgRoles:      roles,
		PlatformAdmin: platformAdmin,
	}
	if err := s.provider.SetCustomClaims(ctx, uid, claims); err != nil {
		return err
	}

	email := acct.Email
	if email == "" {
		email = rec.Email
	}
	return s.users.SaveUserClaims(ctx, uid, email, orgs, roles, platformAdmin)
}
