package identity

import (
	"context"
	"testing"

	"github.com/kobovault/kobovault/internal/wallet"
)

func TestFindOrCreateProvisionsWalletOnFirstLogin(t *testing.T) {
	wallets := wallet.NewMemoryRepository()
	svc := NewService(NewMemoryRepository(wallets))
	ctx := context.Background()

	user, err := svc.FindOrCreate(ctx, Profile{Email: "ada@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	if user.ID == "" || user.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	w, err := wallets.GetByOwner(ctx, user.ID)
	if err != nil {
		t.Fatalf("wallet not provisioned: %v", err)
	}
	if len(w.Number) != 13 {
		t.Fatalf("wallet number %q, want 13 digits", w.Number)
	}
}

func TestFindOrCreateIsStableAcrossLogins(t *testing.T) {
	wallets := wallet.NewMemoryRepository()
	svc := NewService(NewMemoryRepository(wallets))
	ctx := context.Background()

	first, err := svc.FindOrCreate(ctx, Profile{Email: "ada@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := svc.FindOrCreate(ctx, Profile{Email: "ada@example.com", Name: "Ada Lovelace"})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("same email resolved to different users: %s vs %s", first.ID, second.ID)
	}

	firstWallet, _ := wallets.GetByOwner(ctx, first.ID)
	secondWallet, _ := wallets.GetByOwner(ctx, second.ID)
	if firstWallet.ID != secondWallet.ID {
		t.Fatal("repeat login provisioned a second wallet")
	}
}

func TestFindOrCreateRequiresEmail(t *testing.T) {
	svc := NewService(NewMemoryRepository(wallet.NewMemoryRepository()))
	if _, err := svc.FindOrCreate(context.Background(), Profile{Name: "No Email"}); err == nil {
		t.Fatal("expected an error for a profile without email")
	}
}
