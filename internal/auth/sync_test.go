package auth_test

import (
	"context"
	"testing"

	"factura.org/internal/auth"
	"factura.org/internal/store/memory"
)

func newSyncEnv(t *testing.T) (*memory.Store, *auth.Directory, *auth.Synchronizer) {
	t.Helper()
	st := memory.New()
	tokens, err := auth.NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	dir := auth.NewDirectory(st, tokens)
	return st, dir, auth.NewSynchronizer(st, dir)
}

func TestSyncWritesRecordIntoClaims(t *testing.T) {
	ctx := context.Background()
	st, dir, sync := newSyncEnv(t)

	if _, err := st.EnsureUser(ctx, "uid-1", "a@example.com"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := st.SaveUserClaims(ctx, "uid-1", "a@example.com",
		[]string{"org-1"}, map[string]auth.Role{"org-1": auth.RoleManager}, false); err != nil {
		t.Fatalf("save claims: %v", err)
	}

	if err := sync.Sync(ctx, "uid-1"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	acct, err := dir.GetUser(ctx, "uid-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !acct.Claims.MemberOf("org-1") {
		t.Fatalf("claims missing membership: %+v", acct.Claims)
	}
	if role, _ := acct.Claims.RoleIn("org-1"); role != auth.RoleManager {
		t.Fatalf("role = %s, want manager", role)
	}
}

func TestSyncPreservesPlatformAdminFromClaims(t *testing.T) {
	ctx := context.Background()
	st, dir, sync := newSyncEnv(t)

	if _, err := st.EnsureUser(ctx, "uid-1", ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// The flag lives only in the claims bag, as if granted by another node.
	if err := st.SetCustomClaims(ctx, "uid-1", auth.Claims{PlatformAdmin: true}); err != nil {
		t.Fatalf("set claims: %v", err)
	}
	if err := st.SaveUserClaims(ctx, "uid-1", "",
		[]string{"org-1"}, map[string]auth.Role{"org-1": auth.RoleViewer}, false); err != nil {
		t.Fatalf("save claims: %v", err)
	}

	if err := sync.Sync(ctx, "uid-1"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	acct, _ := dir.GetUser(ctx, "uid-1")
	if !acct.Claims.PlatformAdmin {
		t.Fatalf("membership sync dropped platformAdmin")
	}
	rec, _ := st.FindUser(ctx, "uid-1")
	if !rec.PlatformAdmin {
		t.Fatalf("durable record not updated with platformAdmin")
	}
}

func TestSyncUnknownUser(t *testing.T) {
	_, _, sync := newSyncEnv(t)
	if err := sync.Sync(context.Background(), "ghost"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}

func TestMintTokenCreatesRecordOnFirstSight(t *testing.T) {
	ctx := context.Background()
	st, dir, _ := newSyncEnv(t)

	token, err := dir.MintToken(ctx, "new-uid")
	if err != nil {
		t.Fatalf("mint for fresh uid: %v", err)
	}
	id, err := dir.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UID != "new-uid" {
		t.Fatalf("uid = %q", id.UID)
	}
	if len(id.Claims.Organizations) != 0 || id.Claims.PlatformAdmin {
		t.Fatalf("fresh identity carries claims: %+v", id.Claims)
	}

	rec, err := st.FindUser(ctx, "new-uid")
	if err != nil {
		t.Fatalf("record missing after first mint: %v", err)
	}
	if len(rec.Organizations) != 0 {
		t.Fatalf("fresh record not empty: %+v", rec)
	}
}

func TestMintTokenReflectsStoredClaims(t *testing.T) {
	ctx := context.Background()
	st, dir, sync := newSyncEnv(t)

	if _, err := st.EnsureUser(ctx, "uid-1", "a@example.com"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := st.SaveUserClaims(ctx, "uid-1", "a@example.com",
		[]string{"org-1"}, map[string]auth.Role{"org-1": auth.RoleOwner}, false); err != nil {
		t.Fatalf("save claims: %v", err)
	}
	if err := sync.Sync(ctx, "uid-1"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	token, err := dir.MintToken(ctx, "uid-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	id, err := dir.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if role, _ := id.Claims.RoleIn("org-1"); role != auth.RoleOwner {
		t.Fatalf("minted token missing owner role: %+v", id.Claims)
	}
}
