package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/graindesk/wallet_topup/internal/uow"
)

func TestProvisionAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.Provision(ctx, ProvisionInput{Name: "Akello", Roles: []string{RolePaymaster}})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if !user.WalletBalance.IsZero() {
		t.Fatalf("expected zero balance, got %s", user.WalletBalance)
	}

	fetched, err := svc.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !fetched.HasRole(RolePaymaster) || fetched.HasRole(RoleAdmin) {
		t.Fatalf("unexpected roles %v", fetched.Roles)
	}
}

func TestProvisionRequiresNameAndRole(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Provision(ctx, ProvisionInput{Name: "  ", Roles: []string{RoleAdmin}}); err == nil {
		t.Fatal("expected name error")
	}
	if _, err := svc.Provision(ctx, ProvisionInput{Name: "Okot"}); err == nil {
		t.Fatal("expected role error")
	}
}

func TestGetUnknownUser(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreditBalanceUndoneOnFailedUnit(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()
	user, err := svc.Provision(ctx, ProvisionInput{Name: "Nakato", Roles: []string{RoleFieldAgent}})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	m := uow.NewMemory()
	_ = m.Run(ctx, func(ctx context.Context) error {
		if _, err := repo.CreditBalance(ctx, user.ID, decimal.NewFromInt(40)); err != nil {
			t.Fatalf("credit: %v", err)
		}
		return errors.New("abort")
	})

	fetched, _ := repo.Get(ctx, user.ID)
	if !fetched.WalletBalance.IsZero() {
		t.Fatalf("expected credit to be undone, balance %s", fetched.WalletBalance)
	}

	if _, err := repo.CreditBalance(ctx, "missing", decimal.NewFromInt(1)); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
