// Package memory is the in-memory store used by tests and DB-less runs. It
// implements every store interface the services depend on behind one mutex,
// which gives it the same atomicity guarantees the SQL store provides with
// transactions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"factura.org/internal/admin"
	"factura.org/internal/audit"
	"factura.org/internal/auth"
	"factura.org/internal/fault"
	"factura.org/internal/ids"
	"factura.org/internal/invoice"
	"factura.org/internal/tenant"
)

// Store holds all state in maps guarded by a single mutex.
type Store struct {
	mu sync.Mutex

	users    map[string]*auth.UserRecord
	claims   map[string]auth.Claims
	orgs     map[string]*tenant.Organization
	members  map[string]map[string]tenant.Member
	invoices map[string]map[string]*invoice.Invoice
	counters map[string]int64
	events   []*audit.Event
}

var (
	_ auth.UserStore = (*Store)(nil)
	_ tenant.Store   = (*Store)(nil)
	_ invoice.Store  = (*Store)(nil)
	_ audit.Store    = (*Store)(nil)
	_ admin.Store    = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    map[string]*auth.UserRecord{},
		claims:   map[string]auth.Claims{},
		orgs:     map[string]*tenant.Organization{},
		members:  map[string]map[string]tenant.Member{},
		invoices: map[string]map[string]*invoice.Invoice{},
		counters: map[string]int64{},
	}
}

// --- auth.UserStore ---

func (s *Store) EnsureUser(_ context.Context, uid, email string) (*auth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[uid]
	if !ok {
		now := time.Now().UTC()
		rec = &auth.UserRecord{
			UID:           uid,
			Email:         email,
			Organizations: []string{},
			OrgRoles:      map[string]auth.Role{},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		s.users[uid] = rec
	} else if rec.Email == "" && email != "" {
		rec.Email = email
	}
	return cloneUser(rec), nil
}

func (s *Store) FindUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[uid]
	if !ok {
		return nil, fault.Newf(fault.NotFound, "user %s not found", uid)
	}
	return cloneUser(rec), nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*auth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.users {
		if rec.Email == email {
			return cloneUser(rec), nil
		}
	}
	return nil, fault.Newf(fault.NotFound, "no user with email %s", email)
}

func (s *Store) ListUsers(_ context.Context) ([]*auth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, cloneUser(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SaveUserClaims(_ context.Context, uid, email string, orgs []string, roles map[string]auth.Role, platformAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[uid]
	if !ok {
		return fault.Newf(fault.NotFound, "user %s not found", uid)
	}
	if email != "" {
		rec.Email = email
	}
	rec.Organizations = append([]string(nil), orgs...)
	rec.OrgRoles = cloneRoles(roles)
	rec.PlatformAdmin = platformAdmin
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetPlatformAdmin(_ context.Context, uid, email string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[uid]
	if !ok {
		now := time.Now().UTC()
		rec = &auth.UserRecord{
			UID:           uid,
			Email:         email,
			Organizations: []string{},
			OrgRoles:      map[string]auth.Role{},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		s.users[uid] = rec
	}
	if email != "" {
		rec.Email = email
	}
	rec.PlatformAdmin = enabled
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) CustomClaims(_ context.Context, uid string) (auth.Claims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneClaims(s.claims[uid]), nil
}

func (s *Store) SetCustomClaims(_ context.Context, uid string, claims auth.Claims) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[uid] = cloneClaims(claims)
	return nil
}

// --- tenant.Store ---

func (s *Store) Provision(_ context.Context, org *tenant.Organization, owner tenant.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orgs[org.ID]; exists {
		return fault.Newf(fault.Internal, "organization %s already exists", org.ID)
	}
	s.orgs[org.ID] = cloneOrg(org)
	s.counters[org.ID] = 0
	s.members[org.ID] = map[string]tenant.Member{owner.UID: owner}
	s.invoices[org.ID] = map[string]*invoice.Invoice{}
	s.addMembershipLocked(org.ID, owner)
	return nil
}

func (s *Store) GetOrganization(_ context.Context, orgID string) (*tenant.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[orgID]
	if !ok {
		return nil, fault.Newf(fault.NotFound, "organization %s not found", orgID)
	}
	return cloneOrg(org), nil
}

func (s *Store) SaveOrganization(_ context.Context, org *tenant.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[org.ID]; !ok {
		return fault.Newf(fault.NotFound, "organization %s not found", org.ID)
	}
	s.orgs[org.ID] = cloneOrg(org)
	return nil
}

func (s *Store) ListOrganizations(_ context.Context) ([]*tenant.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*tenant.Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		out = append(out, cloneOrg(org))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetMember(_ context.Context, orgID string, member tenant.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[orgID]; !ok {
		return fault.Newf(fault.NotFound, "organization %s not found", orgID)
	}
	if s.members[orgID] == nil {
		s.members[orgID] = map[string]tenant.Member{}
	}
	s.members[orgID][member.UID] = member
	s.addMembershipLocked(orgID, member)
	return nil
}

func (s *Store) RemoveMember(_ context.Context, orgID, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[orgID][uid]; !ok {
		return fault.Newf(fault.NotFound, "member %s not found in organization %s", uid, orgID)
	}
	delete(s.members[orgID], uid)
	if rec, ok := s.users[uid]; ok {
		orgs := rec.Organizations[:0]
		for _, id := range rec.Organizations {
			if id != orgID {
				orgs = append(orgs, id)
			}
		}
		rec.Organizations = orgs
		delete(rec.OrgRoles, orgID)
		rec.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *Store) ListMembers(_ context.Context, orgID string) ([]tenant.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[orgID]; !ok {
		return nil, fault.Newf(fault.NotFound, "organization %s not found", orgID)
	}
	out := make([]tenant.Member, 0, len(s.members[orgID]))
	for _, m := range s.members[orgID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *Store) MemberRole(_ context.Context, orgID, uid string) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[orgID][uid]
	if !ok {
		return "", fault.Newf(fault.NotFound, "member %s not found in organization %s", uid, orgID)
	}
	return m.Role, nil
}

// addMembershipLocked mirrors the membership onto the user record, the same
// write the SQL store does inside the membership transaction.
func (s *Store) addMembershipLocked(orgID string, member tenant.Member) {
	rec, ok := s.users[member.UID]
	if !ok {
		now := time.Now().UTC()
		rec = &auth.UserRecord{
			UID:           member.UID,
			Email:         member.Email,
			Organizations: []string{},
			OrgRoles:      map[string]auth.Role{},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		s.users[member.UID] = rec
	}
	found := false
	for _, id := range rec.Organizations {
		if id == orgID {
			found = true
			break
		}
	}
	if !found {
		rec.Organizations = append(rec.Organizations, orgID)
	}
	if rec.OrgRoles == nil {
		rec.OrgRoles = map[string]auth.Role{}
	}
	rec.OrgRoles[orgID] = member.Role
	rec.UpdatedAt = time.Now().UTC()
}

// --- invoice.Store ---

func (s *Store) CreateNumbered(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[inv.OrganizationID]
	if !ok {
		return fault.Newf(fault.NotFound, "organization %s not found", inv.OrganizationID)
	}
	next := s.counters[inv.OrganizationID] + 1
	s.counters[inv.OrganizationID] = next

	prefix := "INV"
	if org.Profile != nil && org.Profile.InvoicePrefix != "" {
		prefix = org.Profile.InvoicePrefix
	}
	inv.Number = fmt.Sprintf("%s-%06d", prefix, next)

	if s.invoices[inv.OrganizationID] == nil {
		s.invoices[inv.OrganizationID] = map[string]*invoice.Invoice{}
	}
	s.invoices[inv.OrganizationID][inv.ID] = inv.Clone()
	return nil
}

func (s *Store) Find(_ context.Context, orgID, invoiceID string) (*invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[orgID][invoiceID]
	if !ok {
		return nil, fault.Newf(fault.NotFound, "invoice %s not found", invoiceID)
	}
	return inv.Clone(), nil
}

func (s *Store) Save(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.invoices[inv.OrganizationID][inv.ID]
	if !ok {
		return fault.Newf(fault.NotFound, "invoice %s not found", inv.ID)
	}
	next := inv.Clone()
	next.Number = stored.Number
	next.CreatedAt = stored.CreatedAt
	s.invoices[inv.OrganizationID][inv.ID] = next
	return nil
}

func (s *Store) ListPending(_ context.Context, limit int) ([]*invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*invoice.Invoice
	for _, byID := range s.invoices {
		for _, inv := range byID {
			if inv.Status != invoice.StatusPaymentPending {
				continue
			}
			if inv.Payment == nil || inv.Payment.Reference == "" {
				continue
			}
			out = append(out, inv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListRecent(_ context.Context, limit int) ([]*invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*invoice.Invoice
	for _, byID := range s.invoices {
		for _, inv := range byID {
			out = append(out, inv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- audit.Store ---

func (s *Store) Append(_ context.Context, event *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *event
	if e.ID == "" {
		e.ID = ids.New()
	}
	s.events = append(s.events, &e)
	return nil
}

// Events returns a snapshot of recorded audit events, for tests.
func (s *Store) Events() []*audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

// --- admin.Store ---

func (s *Store) Counts(_ context.Context) (admin.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats admin.Stats
	stats.TotalUsers = len(s.users)
	for _, rec := range s.users {
		if rec.PlatformAdmin {
			stats.PlatformAdmins++
		}
	}
	stats.TotalOrganizations = len(s.orgs)
	for _, byID := range s.invoices {
		for _, inv := range byID {
			stats.TotalInvoices++
			switch {
			case inv.Status == invoice.StatusPaid:
				stats.PaidInvoices++
			case admin.Pending(inv.Status):
				stats.PendingInvoices++
			}
		}
	}
	return stats, nil
}

func (s *Store) Organizations(ctx context.Context, limit int) ([]admin.OrgSummary, error) {
	orgs, err := s.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(orgs) > limit {
		orgs = orgs[:limit]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]admin.OrgSummary, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, admin.OrgSummary{
			ID:           org.ID,
			Name:         org.Name,
			OwnerUID:     org.OwnerUID,
			OwnerEmail:   org.OwnerEmail,
			MemberCount:  len(s.members[org.ID]),
			InvoiceCount: len(s.invoices[org.ID]),
			CreatedAt:    org.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) Users(ctx context.Context, limit int) ([]*auth.UserRecord, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *Store) Invoices(ctx context.Context, limit int) ([]*invoice.Invoice, error) {
	return s.ListRecent(ctx, limit)
}

func (s *Store) Payments(_ context.Context, limit int) ([]admin.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []admin.PaymentRecord
	for orgID, byID := range s.invoices {
		for _, inv := range byID {
			if inv.Payment == nil {
				continue
			}
			out = append(out, admin.PaymentRecord{
				OrganizationID: orgID,
				InvoiceID:      inv.ID,
				Number:         inv.Number,
				Provider:       inv.Payment.Provider,
				Reference:      inv.Payment.Reference,
				Amount:         inv.Totals.Total,
				Currency:       inv.Currency,
				Settled:        inv.Status == invoice.StatusPaid,
				UpdatedAt:      inv.UpdatedAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- clone helpers ---

func cloneUser(rec *auth.UserRecord) *auth.UserRecord {
	out := *rec
	out.Organizations = append([]string(nil), rec.Organizations...)
	out.OrgRoles = cloneRoles(rec.OrgRoles)
	return &out
}

func cloneRoles(in map[string]auth.Role) map[string]auth.Role {
	out := make(map[string]auth.Role, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneClaims(c auth.Claims) auth.Claims {
	out := c
	out.Organizations = append([]string(nil), c.Organizations...)
	out.OrgRoles = cloneRoles(c.OrgRoles)
	return out
}

func cloneOrg(org *tenant.Organization) *tenant.Organization {
	out := *org
	if org.Profile != nil {
		p := *org.Profile
		if org.Profile.Address != nil {
			a := *org.Profile.Address
			p.Address = &a
		}
		out.Profile = &p
	}
	return &out
}
