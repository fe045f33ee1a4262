package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/starfeed/backend/pkg/db/models"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
)

// Balance is the account view returned to clients.
type Balance struct {
	AccountID     uuid.UUID       `json:"account_id"`
	Username      string          `json:"username"`
	StarBalance   int             `json:"star_balance"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	IsAdmin       bool            `json:"is_admin"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EnsureInput carries identity claims used to provision an account on first sign-in.
type EnsureInput struct {
	AccountID uuid.UUID
	Username  string
	IsAdmin   bool
}

// Service exposes account provisioning and balance reads.
type Service interface {
	Ensure(ctx context.Context, input EnsureInput) (*Balance, error)
	Get(ctx context.Context, accountID uuid.UUID) (*Balance, error)
	GrantStars(ctx context.Context, accountID uuid.UUID, stars int) (*Balance, error)
}

type accountsRepository interface {
	Ensure(ctx context.Context, id uuid.UUID, username string) (*models.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	AdjustStarBalance(ctx context.Context, id uuid.UUID, delta int) (bool, error)
	SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error
}

type service struct {
	repo accountsRepository
}

// NewService wires the accounts service.
func NewService(repo accountsRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "accounts repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Ensure(ctx context.Context, input EnsureInput) (*Balance, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	username := strings.TrimSpace(input.Username)
	if username == "" {
		username = "user-" + input.AccountID.String()[:8]
	}

	account, err := s.repo.Ensure(ctx, input.AccountID, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure account")
	}
	if account.IsAdmin != input.IsAdmin {
		if err := s.repo.SetAdmin(ctx, account.ID, input.IsAdmin); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync admin flag")
		}
		account.IsAdmin = input.IsAdmin
	}
	return toBalance(account), nil
}

func (s *service) Get(ctx context.Context, accountID uuid.UUID) (*Balance, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return toBalance(account), nil
}

// GrantStars credits stars to an account; used by admins for top-ups.
func (s *service) GrantStars(ctx context.Context, accountID uuid.UUID, stars int) (*Balance, error) {
	if stars <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stars must be positive")
	}
	applied, err := s.repo.AdjustStarBalance(ctx, accountID, stars)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grant stars")
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return s.Get(ctx, accountID)
}

func toBalance(account *models.Account) *Balance {
	return &Balance{
		AccountID:     account.ID,
		Username:      account.Username,
		StarBalance:   account.StarBalance,
		WalletBalance: account.WalletBalance,
		IsAdmin:       account.IsAdmin,
		CreatedAt:     account.CreatedAt,
	}
}
