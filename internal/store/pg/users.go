package pg

import (
	"context"
	"encoding/json"

	"factura.org/internal/auth"
	"factura.org/internal/fault"
)

func (s *Store) EnsureUser(ctx context.Context, uid, email string) (*auth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into users(uid, email)
		values ($1, $2)
		on conflict (uid) do update
		set email = coalesce(nullif(users.email, ''), excluded.email)
		returning uid, email, organizations, org_roles, platform_admin, created_at, updated_at
	`, uid, email)
	return scanUser(row)
}

func (s *Store) FindUser(ctx context.Context, uid string) (*auth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		select uid, email, organizations, org_roles, platform_admin, created_at, updated_at
		from users where uid = $1
	`, uid)
	rec, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, fault.Newf(fault.NotFound, "user %s not found", uid))
	}
	return rec, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		select uid, email, organizations, org_roles, platform_admin, created_at, updated_at
		from users where email = $1
		order by created_at asc
		limit 1
	`, email)
	rec, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, fault.Newf(fault.NotFound, "no user with email %s", email))
	}
	return rec, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*auth.UserRecord, error) {
	return s.listUsers(ctx, 0)
}

func (s *Store) listUsers(ctx context.Context, limit int) ([]*auth.UserRecord, error) {
	q := `
		select uid, email, organizations, org_roles, platform_admin, created_at, updated_at
		from users order by created_at desc`
	var rows rowsScanner
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, q+` limit $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*auth.UserRecord
	for rows.Next() {
		rec, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) SaveUserClaims(ctx context.Context, uid, email string, orgs []string, roles map[string]auth.Role, platformAdmin bool) error {
	orgsJSON, err := json.Marshal(orgs)
	if err != nil {
		return err
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update users
		set email = coalesce(nullif($2, ''), email),
		    organizations = $3,
		    org_roles = $4,
		    platform_admin = $5,
		    updated_at = now()
		where uid = $1
	`, uid, email, orgsJSON, rolesJSON, platformAdmin)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fault.Newf(fault.NotFound, "user %s not found", uid)
	}
	return err
}

func (s *Store) SetPlatformAdmin(ctx context.Context, uid, email string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users(uid, email, platform_admin)
		values ($1, $2, $3)
		on conflict (uid) do update
		set email = coalesce(nullif(excluded.email, ''), users.email),
		    platform_admin = excluded.platform_admin,
		    updated_at = now()
	`, uid, email, enabled)
	return err
}

func (s *Store) CustomClaims(ctx context.Context, uid string) (auth.Claims, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `select custom_claims from users where uid = $1`, uid).Scan(&raw)
	if err != nil {
		return auth.Claims{}, notFound(err, fault.Newf(fault.NotFound, "user %s not found", uid))
	}
	var claims auth.Claims
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &claims); err != nil {
			return auth.Claims{}, err
		}
	}
	return claims, nil
}

func (s *Store) SetCustomClaims(ctx context.Context, uid string, claims auth.Claims) error {
	raw, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update users set custom_claims = $2, updated_at = now() where uid = $1
	`, uid, raw)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fault.Newf(fault.NotFound, "user %s not found", uid)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

type rowsScanner interface {
	scanner
	Next() bool
	Close() error
	Err() error
}

func scanUser(row scanner) (*auth.UserRecord, error) {
	var rec auth.UserRecord
	var orgsJSON, rolesJSON []byte
	if err := row.Scan(&rec.UID, &rec.Email, &orgsJSON, &rolesJSON, &rec.PlatformAdmin, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(orgsJSON, &rec.Organizations); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rolesJSON, &rec.OrgRoles); err != nil {
		return nil, err
	}
	return &rec, nil
}
