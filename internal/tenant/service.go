package tenant

import (
	"context"
	"strings"
	"time"

	"factura.org/internal/audit"
	"factura.org/internal/auth"
	"factura.org/internal/fault"
	"factura.org/internal/ids"
)

// Service implements organization lifecycle and membership management. Every
// membership-mutating operation runs the claims synchronizer for the affected
// identity before returning, so the durable record and the provider's claims
// bag converge within the call.
type Service struct {
	store Store
	users auth.UserStore
	prov  auth.Provider
	sync  *auth.Synchronizer
	audit *audit.Recorder
	now   func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service.
func NewService(store Store, users auth.UserStore, prov auth.Provider, rec *audit.Recorder, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		users: users,
		prov:  prov,
		sync:  auth.NewSynchronizer(users, prov),
		audit: rec,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provision creates an organization with the caller as its owner. Any
// authenticated user may provision; the owner membership, the user-record
// entry and the invoice counter are created in one transaction.
func (s *Service) Provision(ctx context.Context, caller *auth.Identity, name string, profile *Profile) (*Organization, error) {
	if err := auth.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fault.New(fault.InvalidArgument, "organization name is required").
			WithFields(map[string]string{"name": "must not be empty"})
	}
	if len(name) > 160 {
		return nil, fault.New(fault.InvalidArgument, "organization name too long").
			WithFields(map[string]string{"name": "must be at most 160 characters"})
	}
	profile = NormalizeProfile(profile)
	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}

	if _, err := s.users.EnsureUser(ctx, caller.UID, caller.Email); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	org := &Organization{
		ID:         ids.New(),
		Name:       name,
		OwnerUID:   caller.UID,
		OwnerEmail: caller.Email,
		Profile:    profile,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	owner := Member{
		UID:       caller.UID,
		Email:     caller.Email,
		Role:      auth.RoleOwner,
		InvitedBy: caller.UID,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if err := s.store.Provision(ctx, org, owner); err != nil {
		return nil, err
	}
	if err := s.sync.Sync(ctx, caller.UID); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		ActorUID:   caller.UID,
		ActorEmail: caller.Email,
		Action:     "org:provision",
		Target:     org.ID,
		Metadata:   map[string]any{"name": name},
	})
	return org, nil
}

// Get returns the organization; membership (or platform admin) is required.
func (s *Service) Get(ctx context.Context, caller *auth.Identity, orgID string) (*Organization, error) {
	if err := auth.RequireMember(caller, orgID); err != nil {
		return nil, err
	}
	return s.store.GetOrganization(ctx, orgID)
}

// UpdateProfile replaces the organization's name and profile. Owners and
// admins only.
func (s *Service) UpdateProfile(ctx context.Context, caller *auth.Identity, orgID, name string, profile *Profile) (*Organization, error) {
	if err := auth.RequireRole(caller, orgID, auth.RolesMembership...); err != nil {
		return nil, err
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name != "" {
		if len(name) > 160 {
			return nil, fault.New(fault.InvalidArgument, "organization name too long").
				WithFields(map[string]string{"name": "must be at most 160 characters"})
		}
		org.Name = name
	}
	profile = NormalizeProfile(profile)
	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}
	org.Profile = profile

	now := s.now().UTC()
	org.UpdatedAt = now
	org.ProfileUpdatedAt = &now
	if err := s.store.SaveOrganization(ctx, org); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		ActorUID:   caller.UID,
		ActorEmail: caller.Email,
		Action:     "org:profile:update",
		Target:     orgID,
		Metadata:   map[string]any{"name": org.Name},
	})
	return org, nil
}

// Members lists the organization's members.
func (s *Service) Members(ctx context.Context, caller *auth.Identity, orgID string) ([]Member, error) {
	if err := auth.RequireMember(caller, orgID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, orgID)
}

// SetMemberRole adds a user to the organization or changes their role.
// Owners and admins only. The target's user record gains the membership in
// the same transaction as the member row, then their claims are synced.
func (s *Service) SetMemberRole(ctx context.Context, caller *auth.Identity, orgID, targetUID, role string) (*Member, error) {
	if err := auth.RequireRole(caller, orgID, auth.RolesMembership...); err != nil {
		return nil, err
	}
	targetUID = strings.TrimSpace(targetUID)
	if targetUID == "" {
		return nil, fault.New(fault.InvalidArgument, "member uid is required").
			WithFields(map[string]string{"uid": "must not be empty"})
	}
	parsed, err := auth.ParseRole(role)
	if err != nil {
		return nil, err
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	// The owner's role row is fixed; ownership transfer is a separate concern.
	if targetUID == org.OwnerUID && parsed != auth.RoleOwner {
		return nil, fault.New(fault.FailedPrecondition, "cannot demote the organization owner")
	}

	rec, err := s.users.EnsureUser(ctx, targetUID, "")
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	member := Member{
		UID:       targetUID,
		Email:     rec.Email,
		Role:      parsed,
		InvitedBy: caller.UID,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if err := s.store.SetMember(ctx, orgID, member); err != nil {
		return nil, err
	}
	if err := s.sync.Sync(ctx, targetUID); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		ActorUID:   caller.UID,
		ActorEmail: caller.Email,
		Action:     "org:member:set",
		Target:     orgID,
		Metadata:   map[string]any{"memberUid": targetUID, "role": string(parsed)},
	})
	return &member, nil
}

// RemoveMember removes a user from the organization. Owners and admins only;
// the owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, caller *auth.Identity, orgID, targetUID string) error {
	if err := auth.RequireRole(caller, orgID, auth.RolesMembership...); err != nil {
		return err
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if targetUID == org.OwnerUID {
		return fault.New(fault.FailedPrecondition, "cannot remove the organization owner")
	}
	if _, err := s.store.MemberRole(ctx, orgID, targetUID); err != nil {
		return err
	}
	if err := s.store.RemoveMember(ctx, orgID, targetUID); err != nil {
		return err
	}
	if err := s.sync.Sync(ctx, targetUID); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Event{
		ActorUID:   caller.UID,
		ActorEmail: caller.Email,
		Action:     "org:member:remove",
		Target:     orgID,
		Metadata:   map[string]any{"memberUid": targetUID},
	})
	return nil
}

// GrantPlatformAdmin marks the user identified by email as a platform admin,
// in both the durable record and the provider's claims bag. Platform admins
// only.
func (s *Service) GrantPlatformAdmin(ctx context.Context, caller *auth.Identity, email string) (string, error) {
	if err := auth.RequirePlatformAdmin(caller); err != nil {
		return "", err
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", fault.New(fault.InvalidArgument, "a valid email is required").
			WithFields(map[string]string{"email": "must be a valid email address"})
	}
	acct, err := s.prov.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	claims := acct.Claims
	claims.PlatformAdmin = true
	if err := s.prov.SetCustomClaims(ctx, acct.UID, claims); err != nil {
		return "", err
	}
	if err := s.users.SetPlatformAdmin(ctx, acct.UID, acct.Email, true); err != nil {
		return "", err
	}

	s.audit.Record(ctx, audit.Event{
		ActorUID:   caller.UID,
		ActorEmail: caller.Email,
		Action:     "platform:admin:grant",
		Target:     acct.UID,
		Metadata:   map[string]any{"email": acct.Email},
	})
	return acct.UID, nil
}

// RevokePlatformAdmin clears the flag. The claims are rebuilt from the
// durable record so organization memberships survive the revoke.
func (s *Service) RevokePlatformAdmin(ctx context.Context, caller *auth.Identity, uid string) error {
	if err := auth.RequirePlatformAdmin(caller); err != nil {
		return err
	}
	rec, err := s.users.FindUser(ctx, uid)
	if err != nil {
		return err
	}
	orgs := rec.Organizations
	if orgs == nil {
		orgs = []string{}
	}
	roles := rec.OrgRoles
	if roles == nil {
		roles = map[string]auth.Role{}
	}
	if err := s.prov.SetCustomClaims(ctx, uid, auth.Claims{
		Organizations: orgs,
		OrgRoles:      roles,
		PlatformAdmin: false,
	}); err != nil {
		return err
	}
	if err := s.users.SetPlatformAdmin(ctx, uid, rec.Email, false); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Event{
		ActorUID:   caller.UID,
		ActorEmail: caller.Email,
		Action:     "platform:admin:revoke",
		Target:     uid,
		Metadata:   map[string]any{"email": rec.Email},
	})
	return nil
}
