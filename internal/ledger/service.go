package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/starfeed/backend/internal/accounts"
	"github.com/starfeed/backend/internal/content"
	"github.com/starfeed/backend/internal/notifications"
	"github.com/starfeed/backend/pkg/db/models"
	"github.com/starfeed/backend/pkg/enums"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
	"github.com/starfeed/backend/pkg/logger"
	"github.com/starfeed/backend/pkg/metrics"
	"github.com/starfeed/backend/pkg/outbox"
	"github.com/starfeed/backend/pkg/outbox/payloads"
	"github.com/starfeed/backend/pkg/pagination"
)

// RejectReason names a business rejection of RecordView.
type RejectReason string

const (
	RejectContentUnavailable RejectReason = "ContentUnavailable"
	RejectInsufficientStars  RejectReason = "InsufficientStars"
)

// ViewOutcome is the result of RecordView. Rejections are outcome values,
// not errors; an error return always means the transaction rolled back and
// the call is safe to retry.
type ViewOutcome struct {
	Success       bool             `json:"success"`
	Error         RejectReason     `json:"error,omitempty"`
	AlreadyViewed bool             `json:"already_viewed"`
	Charged       bool             `json:"charged"`
	StarsSpent    int              `json:"stars_spent"`
	OwnerEarn     *decimal.Decimal `json:"owner_earn,omitempty"`
	ViewerEarn    *decimal.Decimal `json:"viewer_earn,omitempty"`
	PlatformEarn  *decimal.Decimal `json:"platform_earn,omitempty"`
	TransactionID *uuid.UUID       `json:"transaction_id,omitempty"`
}

// AccountStore is the balance surface the ledger mutates.
type AccountStore interface {
	GetStarBalance(ctx context.Context, id uuid.UUID) (int, error)
	LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]models.Account, error)
	AdjustStarBalance(ctx context.Context, id uuid.UUID, delta int) (bool, error)
	AdjustWalletBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (bool, error)
}

// ContentStore resolves pricing and maintains the view counter.
type ContentStore interface {
	GetPricing(ctx context.Context, id uuid.UUID) (*content.Pricing, error)
	IncrementViewCount(ctx context.Context, id uuid.UUID) error
}

// ViewStore holds one view record per (content, viewer) pair.
type ViewStore interface {
	Exists(ctx context.Context, contentID, viewerID uuid.UUID) (bool, error)
	Insert(ctx context.Context, view *models.ContentView) (bool, error)
}

// TransactionStore appends star transaction rows.
type TransactionStore interface {
	Create(ctx context.Context, txn *models.StarTransaction) error
}

// NotificationSink receives the post-commit earned/cashback messages.
type NotificationSink interface {
	Notify(ctx context.Context, accountID uuid.UUID, message notifications.Message) error
}

// Stores groups the collaborators bound to one database transaction.
type Stores struct {
	Accounts     AccountStore
	Content      ContentStore
	Views        ViewStore
	Transactions TransactionStore
}

// StoreFactory binds the stores to tx.
type StoreFactory func(tx *gorm.DB) Stores

// NewStoreFactory binds the concrete repositories.
func NewStoreFactory(accountsRepo *accounts.Repository, contentRepo *content.Repository, views *ViewRepository, txns *TransactionRepository) StoreFactory {
	return func(tx *gorm.DB) Stores {
		return Stores{
			Accounts:     accountsRepo.WithTx(tx),
			Content:      contentRepo.WithTx(tx),
			Views:        views.WithTx(tx),
			Transactions: txns.WithTx(tx),
		}
	}
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

// Service is the star ledger.
type Service interface {
	RecordView(ctx context.Context, contentID, viewerID uuid.UUID) (*ViewOutcome, error)
	HasViewed(ctx context.Context, contentID, viewerID uuid.UUID) (bool, error)
	ListTransactions(ctx context.Context, params ListTransactionsParams) (*TransactionList, error)
	PlatformRevenue(ctx context.Context, since time.Time) (*Revenue, error)
}

// ServiceParams wires the ledger.
type ServiceParams struct {
	DB           txRunner
	Stores       StoreFactory
	Views        *ViewRepository
	Transactions *TransactionRepository
	Outbox       outboxEmitter
	Notifier     NotificationSink
	StarValueNGN int64
	Metrics      *metrics.LedgerMetrics
	Logger       *logger.Logger
}

type service struct {
	db           txRunner
	stores       StoreFactory
	views        *ViewRepository
	txns         *TransactionRepository
	outbox       outboxEmitter
	notifier     NotificationSink
	starValueNGN int64
	metrics      *metrics.LedgerMetrics
	logg         *logger.Logger
}

// NewService validates params and builds the ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Stores == nil {
		return nil, fmt.Errorf("store factory required")
	}
	if params.Views == nil || params.Transactions == nil {
		return nil, fmt.Errorf("ledger repositories required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	starValue := params.StarValueNGN
	if starValue <= 0 {
		starValue = DefaultStarValueNGN
	}
	return &service{
		db:           params.DB,
		stores:       params.Stores,
		views:        params.Views,
		txns:         params.Transactions,
		outbox:       params.Outbox,
		notifier:     params.Notifier,
		starValueNGN: starValue,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// errInsufficientStars rolls the transaction back without surfacing as a failure.
var errInsufficientStars = errors.New("insufficient stars")

// errUnknownViewer means the viewer has no accounts row to attach a view to.
var errUnknownViewer = errors.New("viewer account not found")

type chargeResult struct {
	outcome ViewOutcome
	ownerID uuid.UUID
	shares  Shares
}

// RecordView unlocks contentID for viewerID, charging the viewer when the
// content is priced and owned by someone else. It is safe to call repeatedly
// and concurrently for the same pair: at most one call charges.
func (s *service) RecordView(ctx context.Context, contentID, viewerID uuid.UUID) (*ViewOutcome, error) {
	if contentID == uuid.Nil || viewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content id and viewer id required")
	}
	logCtx := s.logg.WithContentID(ctx, contentID.String())
	logCtx = s.logg.WithAccountID(logCtx, viewerID.String())

	var result chargeResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.recordViewTx(ctx, s.stores(tx), tx, contentID, viewerID)
		result = res
		return err
	})
	switch {
	case errors.Is(err, errInsufficientStars):
		s.observe("insufficient_stars")
		return &ViewOutcome{Success: false, Error: RejectInsufficientStars}, nil
	case errors.Is(err, errUnknownViewer):
		s.observe("error")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "viewer account not found")
	case err != nil:
		s.observe("error")
		s.logg.Error(logCtx, "record view failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record view")
	}

	outcome := result.outcome
	switch {
	case !outcome.Success:
		s.observe("content_unavailable")
	case outcome.AlreadyViewed:
		s.observe("already_viewed")
	case outcome.Charged:
		s.observe("charged")
		if s.metrics != nil {
			s.metrics.AddStarsSpent(outcome.StarsSpent)
		}
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"stars_spent": outcome.StarsSpent,
			"owner_id":    result.ownerID.String(),
		}), "view charged")
		s.notifyCharged(logCtx, contentID, viewerID, result.ownerID, result.shares)
	default:
		s.observe("free")
	}
	return &outcome, nil
}

func (s *service) recordViewTx(ctx context.Context, stores Stores, tx *gorm.DB, contentID, viewerID uuid.UUID) (chargeResult, error) {
	pricing, err := stores.Content.GetPricing(ctx, contentID)
	if err != nil {
		return chargeResult{}, fmt.Errorf("load pricing: %w", err)
	}
	if pricing == nil || !pricing.Status.Viewable() {
		return chargeResult{outcome: ViewOutcome{Success: false, Error: RejectContentUnavailable}}, nil
	}
	alreadyViewed := chargeResult{outcome: ViewOutcome{Success: true, AlreadyViewed: true}}

	exists, err := stores.Views.Exists(ctx, contentID, viewerID)
	if err != nil {
		return chargeResult{}, fmt.Errorf("check view record: %w", err)
	}
	if exists {
		return alreadyViewed, nil
	}

	selfView := pricing.OwnerAccountID == viewerID
	if pricing.StarPrice == 0 || selfView {
		if !selfView {
			if _, err := stores.Accounts.GetStarBalance(ctx, viewerID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return chargeResult{}, errUnknownViewer
				}
				return chargeResult{}, fmt.Errorf("load viewer account: %w", err)
			}
		}
		claimed, err := stores.Views.Insert(ctx, &models.ContentView{ContentID: contentID, ViewerAccountID: viewerID})
		if err != nil {
			return chargeResult{}, fmt.Errorf("insert view record: %w", err)
		}
		if !claimed {
			return alreadyViewed, nil
		}
		if !selfView {
			if err := stores.Content.IncrementViewCount(ctx, contentID); err != nil {
				return chargeResult{}, fmt.Errorf("increment view count: %w", err)
			}
		}
		return chargeResult{outcome: ViewOutcome{Success: true}}, nil
	}

	price := pricing.StarPrice
	locked, err := stores.Accounts.LockForUpdate(ctx, pricing.OwnerAccountID, viewerID)
	if err != nil {
		return chargeResult{}, fmt.Errorf("lock accounts: %w", err)
	}
	// A viewer without an accounts row holds no stars, and content_views
	// references accounts, so reject before claiming the view.
	if !slices.ContainsFunc(locked, func(a models.Account) bool { return a.ID == viewerID }) {
		return chargeResult{}, errInsufficientStars
	}

	// The pair may have been charged by a transaction that held the locks before us.
	claimed, err := stores.Views.Insert(ctx, &models.ContentView{
		ContentID:       contentID,
		ViewerAccountID: viewerID,
		StarsSpent:      price,
	})
	if err != nil {
		return chargeResult{}, fmt.Errorf("insert view record: %w", err)
	}
	if !claimed {
		return alreadyViewed, nil
	}

	balance, err := stores.Accounts.GetStarBalance(ctx, viewerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chargeResult{}, errInsufficientStars
		}
		return chargeResult{}, fmt.Errorf("load star balance: %w", err)
	}
	if balance < price {
		return chargeResult{}, errInsufficientStars
	}

	debited, err := stores.Accounts.AdjustStarBalance(ctx, viewerID, -price)
	if err != nil {
		return chargeResult{}, fmt.Errorf("debit stars: %w", err)
	}
	if !debited {
		return chargeResult{}, errInsufficientStars
	}

	shares := SplitStars(price, s.starValueNGN)
	if ok, err := stores.Accounts.AdjustWalletBalance(ctx, pricing.OwnerAccountID, shares.Owner); err != nil || !ok {
		return chargeResult{}, walletErr("credit owner wallet", err)
	}
	if ok, err := stores.Accounts.AdjustWalletBalance(ctx, viewerID, shares.Viewer); err != nil || !ok {
		return chargeResult{}, walletErr("credit viewer cashback", err)
	}

	txn := &models.StarTransaction{
		ContentID:       contentID,
		OwnerAccountID:  pricing.OwnerAccountID,
		ViewerAccountID: viewerID,
		StarsSpent:      price,
		OwnerEarnNGN:    shares.Owner,
		ViewerEarnNGN:   shares.Viewer,
		PlatformEarnNGN: shares.Platform,
	}
	if err := stores.Transactions.Create(ctx, txn); err != nil {
		return chargeResult{}, fmt.Errorf("insert star transaction: %w", err)
	}
	if err := stores.Content.IncrementViewCount(ctx, contentID); err != nil {
		return chargeResult{}, fmt.Errorf("increment view count: %w", err)
	}

	if err := s.outbox.Emit(ctx, tx, outbox.Event{
		Type:        enums.EventStarViewCharged,
		Aggregate:   enums.AggregateStarTransaction,
		AggregateID: txn.ID,
		Actor:       &outbox.Actor{AccountID: viewerID, Role: "viewer"},
		Data: payloads.StarViewChargedEvent{
			TransactionID:   txn.ID,
			ContentID:       contentID,
			OwnerAccountID:  pricing.OwnerAccountID,
			ViewerAccountID: viewerID,
			StarsSpent:      price,
			OwnerEarnNGN:    shares.Owner,
			ViewerEarnNGN:   shares.Viewer,
			PlatformEarnNGN: shares.Platform,
		},
	}); err != nil {
		return chargeResult{}, fmt.Errorf("emit star_view_charged: %w", err)
	}

	txnID := txn.ID
	return chargeResult{
		outcome: ViewOutcome{
			Success:       true,
			Charged:       true,
			StarsSpent:    price,
			OwnerEarn:     &shares.Owner,
			ViewerEarn:    &shares.Viewer,
			PlatformEarn:  &shares.Platform,
			TransactionID: &txnID,
		},
		ownerID: pricing.OwnerAccountID,
		shares:  shares,
	}, nil
}

func walletErr(step string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: account missing", step)
	}
	return fmt.Errorf("%s: %w", step, err)
}

// notifyCharged runs after commit. Failures are logged and dropped.
func (s *service) notifyCharged(ctx context.Context, contentID, viewerID, ownerID uuid.UUID, shares Shares) {
	if s.notifier == nil {
		return
	}
	link := fmt.Sprintf("/content/%s", contentID)
	messages := []struct {
		accountID uuid.UUID
		message   notifications.Message
	}{
		{
			accountID: ownerID,
			message: notifications.Message{
				Type:  enums.NotificationTypeEarning,
				Title: "You earned from a view",
				Body:  fmt.Sprintf("Someone unlocked your content. NGN %s was added to your wallet.", shares.Owner.StringFixed(2)),
				Link:  link,
			},
		},
		{
			accountID: viewerID,
			message: notifications.Message{
				Type:  enums.NotificationTypeCashback,
				Title: "Cashback received",
				Body:  fmt.Sprintf("NGN %s cashback was added to your wallet.", shares.Viewer.StringFixed(2)),
				Link:  link,
			},
		},
	}
	for _, m := range messages {
		if err := s.notifier.Notify(ctx, m.accountID, m.message); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "notify_account_id", m.accountID.String()), "view notification dropped: "+err.Error())
		}
	}
}

func (s *service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveOutcome(outcome)
	}
}

func (s *service) HasViewed(ctx context.Context, contentID, viewerID uuid.UUID) (bool, error) {
	if contentID == uuid.Nil || viewerID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "content id and viewer id required")
	}
	viewed, err := s.views.Exists(ctx, contentID, viewerID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check view record")
	}
	return viewed, nil
}

// ListTransactionsParams configures transaction history pagination.
type ListTransactionsParams struct {
	AccountID uuid.UUID
	Limit     int
	Cursor    string
}

// TransactionEntry is one history row seen from the requesting account.
type TransactionEntry struct {
	ID              uuid.UUID       `json:"id"`
	ContentID       uuid.UUID       `json:"content_id"`
	Direction       string          `json:"direction"`
	OwnerAccountID  uuid.UUID       `json:"owner_account_id"`
	ViewerAccountID uuid.UUID       `json:"viewer_account_id"`
	StarsSpent      int             `json:"stars_spent"`
	OwnerEarnNGN    decimal.Decimal `json:"owner_earn_ngn"`
	ViewerEarnNGN   decimal.Decimal `json:"viewer_earn_ngn"`
	PlatformEarnNGN decimal.Decimal `json:"platform_earn_ngn"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TransactionList wraps a page of history.
type TransactionList struct {
	Items  []TransactionEntry `json:"items"`
	Cursor string             `json:"cursor"`
}

const (
	directionEarned = "earned"
	directionSpent  = "spent"
)

func (s *service) ListTransactions(ctx context.Context, params ListTransactionsParams) (*TransactionList, error) {
	if params.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	query := listTransactionsParams{AccountID: params.AccountID, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.txns.ListForAccount(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	items := make([]TransactionEntry, 0, len(rows))
	for _, row := range rows {
		direction := directionSpent
		if row.OwnerAccountID == params.AccountID {
			direction = directionEarned
		}
		items = append(items, TransactionEntry{
			ID:              row.ID,
			ContentID:       row.ContentID,
			Direction:       direction,
			OwnerAccountID:  row.OwnerAccountID,
			ViewerAccountID: row.ViewerAccountID,
			StarsSpent:      row.StarsSpent,
			OwnerEarnNGN:    row.OwnerEarnNGN,
			ViewerEarnNGN:   row.ViewerEarnNGN,
			PlatformEarnNGN: row.PlatformEarnNGN,
			CreatedAt:       row.CreatedAt,
		})
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &TransactionList{Items: items, Cursor: cursor}, nil
}

// Revenue is the platform's implicit share over a window.
type Revenue struct {
	Since        time.Time       `json:"since"`
	PlatformNGN  decimal.Decimal `json:"platform_ngn"`
	Transactions int64           `json:"transactions"`
	StarsSpent   int64           `json:"stars_spent"`
}

func (s *service) PlatformRevenue(ctx context.Context, since time.Time) (*Revenue, error) {
	row, err := s.txns.SumPlatformEarn(ctx, since.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum platform revenue")
	}
	return &Revenue{
		Since:        since.UTC(),
		PlatformNGN:  row.Total,
		Transactions: row.Count,
		StarsSpent:   row.Stars,
	}, nil
}
