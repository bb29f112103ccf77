package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"factura.org/internal/auth"
	"factura.org/internal/fault"
	"factura.org/internal/tenant"
)

func (s *Store) Provision(ctx context.Context, org *tenant.Organization, owner tenant.Member) error {
	profileJSON, err := marshalProfile(org.Profile)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into organizations(id, name, owner_uid, owner_email, profile, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $6)
	`, org.ID, org.Name, org.OwnerUID, org.OwnerEmail, profileJSON, org.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into invoice_counters(org_id, current) values ($1, 0)
	`, org.ID); err != nil {
		return err
	}
	if err := upsertMemberTx(ctx, tx, org.ID, owner); err != nil {
		return err
	}
	if err := applyMembershipTx(ctx, tx, org.ID, owner); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetOrganization(ctx context.Context, orgID string) (*tenant.Organization, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, owner_uid, owner_email, profile, created_at, updated_at, profile_updated_at
		from organizations where id = $1
	`, orgID)
	org, err := scanOrg(row)
	if err != nil {
		return nil, notFound(err, fault.Newf(fault.NotFound, "organization %s not found", orgID))
	}
	return org, nil
}

func (s *Store) SaveOrganization(ctx context.Context, org *tenant.Organization) error {
	profileJSON, err := marshalProfile(org.Profile)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update organizations
		set name = $2, profile = $3, updated_at = $4, profile_updated_at = $5
		where id = $1
	`, org.ID, org.Name, profileJSON, org.UpdatedAt, org.ProfileUpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fault.Newf(fault.NotFound, "organization %s not found", org.ID)
	}
	return err
}

func (s *Store) ListOrganizations(ctx context.Context) ([]*tenant.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, owner_uid, owner_email, profile, created_at, updated_at, profile_updated_at
		from organizations order by created_at desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*tenant.Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

func (s *Store) SetMember(ctx context.Context, orgID string, member tenant.Member) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from organizations where id = $1`, orgID).Scan(&exists); err != nil {
		return notFound(err, fault.Newf(fault.NotFound, "organization %s not found", orgID))
	}
	if err := upsertMemberTx(ctx, tx, orgID, member); err != nil {
		return err
	}
	if err := applyMembershipTx(ctx, tx, orgID, member); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) RemoveMember(ctx context.Context, orgID, uid string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `delete from members where org_id = $1 and uid = $2`, orgID, uid)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fault.Newf(fault.NotFound, "member %s not found in organization %s", uid, orgID)
	}
	if err := stripMembershipTx(ctx, tx, orgID, uid); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListMembers(ctx context.Context, orgID string) ([]tenant.Member, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `select 1 from organizations where id = $1`, orgID).Scan(&exists); err != nil {
		return nil, notFound(err, fault.Newf(fault.NotFound, "organization %s not found", orgID))
	}
	rows, err := s.db.QueryContext(ctx, `
		select uid, email, role, invited_by, joined_at, updated_at
		from members where org_id = $1 order by joined_at asc
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tenant.Member
	for rows.Next() {
		var m tenant.Member
		if err := rows.Scan(&m.UID, &m.Email, &m.Role, &m.InvitedBy, &m.JoinedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) MemberRole(ctx context.Context, orgID, uid string) (auth.Role, error) {
	var role auth.Role
	err := s.db.QueryRowContext(ctx, `
		select role from members where org_id = $1 and uid = $2
	`, orgID, uid).Scan(&role)
	if err != nil {
		return "", notFound(err, fault.Newf(fault.NotFound, "member %s not found in organization %s", uid, orgID))
	}
	return role, nil
}

func upsertMemberTx(ctx context.Context, tx *sql.Tx, orgID string, m tenant.Member) error {
	_, err := tx.ExecContext(ctx, `
		insert into members(org_id, uid, email, role, invited_by, joined_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (org_id, uid) do update
		set role = excluded.role, email = coalesce(nullif(excluded.email,''), members.email), updated_at = excluded.updated_at
	`, orgID, m.UID, m.Email, m.Role, m.InvitedBy, m.JoinedAt, m.UpdatedAt)
	return err
}

// applyMembershipTx mirrors the membership onto the user record inside the
// same transaction as the member row, locking the row against concurrent
// membership writes for the same user.
func applyMembershipTx(ctx context.Context, tx *sql.Tx, orgID string, m tenant.Member) error {
	var orgsJSON, rolesJSON []byte
	err := tx.QueryRowContext(ctx, `
		select organizations, org_roles from users where uid = $1 for update
	`, m.UID).Scan(&orgsJSON, &rolesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.ExecContext(ctx, `insert into users(uid, email) values ($1, $2)`, m.UID, m.Email); err != nil {
			return err
		}
		orgsJSON, rolesJSON = []byte(`[]`), []byte(`{}`)
	} else if err != nil {
		return err
	}

	var orgs []string
	roles := map[string]auth.Role{}
	if err := json.Unmarshal(orgsJSON, &orgs); err != nil {
		return err
	}
	if err := json.Unmarshal(rolesJSON, &roles); err != nil {
		return err
	}

	found := false
	for _, id := range orgs {
		if id == orgID {
			found = true
			break
		}
	}
	if !found {
		orgs = append(orgs, orgID)
	}
	roles[orgID] = m.Role

	return updateUserMembershipTx(ctx, tx, m.UID, orgs, roles)
}

func stripMembershipTx(ctx context.Context, tx *sql.Tx, orgID, uid string) error {
	var orgsJSON, rolesJSON []byte
	err := tx.QueryRowContext(ctx, `
		select organizations, org_roles from users where uid = $1 for update
	`, uid).Scan(&orgsJSON, &rolesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	var orgs []string
	roles := map[string]auth.Role{}
	if err := json.Unmarshal(orgsJSON, &orgs); err != nil {
		return err
	}
	if err := json.Unmarshal(rolesJSON, &roles); err != nil {
		return err
	}

	kept := orgs[:0]
	for _, id := range orgs {
		if id != orgID {
			kept = append(kept, id)
		}
	}
	delete(roles, orgID)

	return updateUserMembershipTx(ctx, tx, uid, kept, roles)
}

func updateUserMembershipTx(ctx context.Context, tx *sql.Tx, uid string, orgs []string, roles map[string]auth.Role) error {
	if orgs == nil {
		orgs = []string{}
	}
	orgsJSON, err := json.Marshal(orgs)
	if err != nil {
		return err
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		update users set organizations = $2, org_roles = $3, updated_at = now() where uid = $1
	`, uid, orgsJSON, rolesJSON)
	return err
}

func marshalProfile(p *tenant.Profile) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func scanOrg(row scanner) (*tenant.Organization, error) {
	var org tenant.Organization
	var profileJSON []byte
	var ownerEmail sql.NullString
	var profileUpdated sql.NullTime
	if err := row.Scan(&org.ID, &org.Name, &org.OwnerUID, &ownerEmail, &profileJSON, &org.CreatedAt, &org.UpdatedAt, &profileUpdated); err != nil {
		return nil, err
	}
	org.OwnerEmail = ownerEmail.String
	if profileUpdated.Valid {
		t := profileUpdated.Time
		org.ProfileUpdatedAt = &t
	}
	if len(profileJSON) > 0 {
		var p tenant.Profile
		if err := json.Unmarshal(profileJSON, &p); err != nil {
			return nil, err
		}
		org.Profile = &p
	}
	return &org, nil
}
