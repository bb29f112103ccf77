package auth

import (
	"context"
	"strings"

	"factura.org/internal/fault"
)

// Directory implements Provider on top of the user store and the token
// service: verified tokens carry claims at face value, while Get/Set operate
// on the stored custom-claims bag.
type Directory struct {
	users  UserStore
	tokens *TokenService
}

var _ Provider = (*Directory)(nil)

// NewDirectory constructs the auth provider collaborator.
func NewDirectory(users UserStore, tokens *TokenService) *Directory {
	return &Directory{users: users, tokens: tokens}
}

func (d *Directory) VerifyToken(ctx context.Context, token string) (Identity, error) {
	return d.tokens.Verify(token)
}

func (d *Directory) GetUser(ctx context.Context, uid string) (Account, error) {
	rec, err := d.users.FindUser(ctx, uid)
	if err != nil {
		return Account{}, err
	}
	claims, err := d.users.CustomClaims(ctx, uid)
	if err != nil {
		return Account{}, err
	}
	return Account{UID: rec.UID, Email: rec.Email, Claims: claims}, nil
}

func (d *Directory) GetUserByEmail(ctx context.Context, email string) (Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return Account{}, fault.New(fault.InvalidArgument, "email is required")
	}
	rec, err := d.users.FindUserByEmail(ctx, email)
	if err != nil {
		return Account{}, err
	}
	claims, err := d.users.CustomClaims(ctx, rec.UID)
	if err != nil {
		return Account{}, err
	}
	return Account{UID: rec.UID, Email: rec.Email, Claims: claims}, nil
}

func (d *Directory) SetCustomClaims(ctx context.Context, uid string, claims Claims) error {
	return d.users.SetCustomClaims(ctx, uid, claims)
}

// MintToken issues a fresh token from the durable record, which is how a
// client forces a refresh after a membership-mutating call. First sight of a
// uid creates the empty record, so a brand-new identity receives a token with
// no memberships rather than an error.
func (d *Directory) MintToken(ctx context.Context, uid string) (string, error) {
	rec, err := d.users.EnsureUser(ctx, uid, "")
	if err != nil {
		return "", err
	}
	claims, err := d.users.CustomClaims(ctx, uid)
	if err != nil {
		return "", err
	}
	token, _, err := d.tokens.Mint(rec.UID, rec.Email, claims)
	return token, err
}
