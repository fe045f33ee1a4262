package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/starfeed/backend/api/middleware"
	"github.com/starfeed/backend/internal/accounts"
	"github.com/starfeed/backend/internal/ledger"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
	"github.com/starfeed/backend/pkg/logger"
)

type testLedgerService struct {
	recordFn  func(ctx context.Context, contentID, viewerID uuid.UUID) (*ledger.ViewOutcome, error)
	viewedFn  func(ctx context.Context, contentID, viewerID uuid.UUID) (bool, error)
	listFn    func(ctx context.Context, params ledger.ListTransactionsParams) (*ledger.TransactionList, error)
	revenueFn func(ctx context.Context, since time.Time) (*ledger.Revenue, error)
}

func (s *testLedgerService) RecordView(ctx context.Context, contentID, viewerID uuid.UUID) (*ledger.ViewOutcome, error) {
	return s.recordFn(ctx, contentID, viewerID)
}

func (s *testLedgerService) HasViewed(ctx context.Context, contentID, viewerID uuid.UUID) (bool, error) {
	if s.viewedFn != nil {
		return s.viewedFn(ctx, contentID, viewerID)
	}
	return false, nil
}

func (s *testLedgerService) ListTransactions(ctx context.Context, params ledger.ListTransactionsParams) (*ledger.TransactionList, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &ledger.TransactionList{}, nil
}

func (s *testLedgerService) PlatformRevenue(ctx context.Context, since time.Time) (*ledger.Revenue, error) {
	if s.revenueFn != nil {
		return s.revenueFn(ctx, since)
	}
	return &ledger.Revenue{Since: since}, nil
}

type testAccountsService struct {
	ensured []accounts.EnsureInput
	grantFn func(ctx context.Context, accountID uuid.UUID, stars int) (*accounts.Balance, error)
}

func (s *testAccountsService) Ensure(ctx context.Context, input accounts.EnsureInput) (*accounts.Balance, error) {
	s.ensured = append(s.ensured, input)
	return &accounts.Balance{AccountID: input.AccountID, Username: input.Username, IsAdmin: input.IsAdmin}, nil
}

func (s *testAccountsService) Get(ctx context.Context, accountID uuid.UUID) (*accounts.Balance, error) {
	return &accounts.Balance{AccountID: accountID}, nil
}

func (s *testAccountsService) GrantStars(ctx context.Context, accountID uuid.UUID, stars int) (*accounts.Balance, error) {
	if s.grantFn != nil {
		return s.grantFn(ctx, accountID, stars)
	}
	return &accounts.Balance{AccountID: accountID, StarBalance: stars}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func recordViewRequest(viewerID, contentID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/"+contentID.String()+"/views", nil)
	req = req.WithContext(middleware.WithAccount(req.Context(), viewerID, "viewer", false))
	return addRouteParam(req, "contentId", contentID.String())
}

func TestRecordViewChargedReturnsOutcome(t *testing.T) {
	viewerID := uuid.New()
	contentID := uuid.New()
	owner := decimal.NewFromInt(900)
	cashback := decimal.NewFromInt(300)
	svc := &testLedgerService{
		recordFn: func(ctx context.Context, cid, vid uuid.UUID) (*ledger.ViewOutcome, error) {
			if cid != contentID || vid != viewerID {
				t.Fatalf("unexpected ids %s %s", cid, vid)
			}
			return &ledger.ViewOutcome{
				Success:      true,
				Charged:      true,
				StarsSpent:   3,
				OwnerEarn:    &owner,
				ViewerEarn:   &cashback,
				PlatformEarn: &cashback,
			}, nil
		},
	}
	accountsSvc := &testAccountsService{}

	resp := httptest.NewRecorder()
	RecordView(svc, accountsSvc, testLogger())(resp, recordViewRequest(viewerID, contentID))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d body %s", resp.Code, resp.Body.String())
	}
	if len(accountsSvc.ensured) != 1 || accountsSvc.ensured[0].AccountID != viewerID {
		t.Fatalf("expected viewer account ensured, got %+v", accountsSvc.ensured)
	}

	var envelope struct {
		Data ledger.ViewOutcome `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Charged || envelope.Data.StarsSpent != 3 {
		t.Fatalf("unexpected outcome %+v", envelope.Data)
	}
	if envelope.Data.OwnerEarn == nil || !envelope.Data.OwnerEarn.Equal(owner) {
		t.Fatalf("unexpected owner earn %v", envelope.Data.OwnerEarn)
	}
}

func TestRecordViewRejectionsMapToStatus(t *testing.T) {
	cases := []struct {
		name     string
		reason   ledger.RejectReason
		wantCode int
		wantErr  string
	}{
		{"content unavailable", ledger.RejectContentUnavailable, http.StatusNotFound, string(pkgerrors.CodeContentUnavailable)},
		{"insufficient stars", ledger.RejectInsufficientStars, http.StatusPaymentRequired, string(pkgerrors.CodeInsufficientStars)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &testLedgerService{
				recordFn: func(context.Context, uuid.UUID, uuid.UUID) (*ledger.ViewOutcome, error) {
					return &ledger.ViewOutcome{Success: false, Error: tc.reason}, nil
				},
			}
			resp := httptest.NewRecorder()
			RecordView(svc, &testAccountsService{}, testLogger())(resp, recordViewRequest(uuid.New(), uuid.New()))

			if resp.Code != tc.wantCode {
				t.Fatalf("expected %d got %d", tc.wantCode, resp.Code)
			}
			var envelope struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if envelope.Error.Code != tc.wantErr {
				t.Fatalf("expected code %s got %s", tc.wantErr, envelope.Error.Code)
			}
		})
	}
}

func TestRecordViewAlreadyViewedIsSuccess(t *testing.T) {
	svc := &testLedgerService{
		recordFn: func(context.Context, uuid.UUID, uuid.UUID) (*ledger.ViewOutcome, error) {
			return &ledger.ViewOutcome{Success: true, AlreadyViewed: true}, nil
		},
	}
	resp := httptest.NewRecorder()
	RecordView(svc, &testAccountsService{}, testLogger())(resp, recordViewRequest(uuid.New(), uuid.New()))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRecordViewStorageFailureIsServiceUnavailable(t *testing.T) {
	svc := &testLedgerService{
		recordFn: func(context.Context, uuid.UUID, uuid.UUID) (*ledger.ViewOutcome, error) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("conn reset"), "record view")
		},
	}
	resp := httptest.NewRecorder()
	RecordView(svc, &testAccountsService{}, testLogger())(resp, recordViewRequest(uuid.New(), uuid.New()))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestRecordViewRequiresAccount(t *testing.T) {
	contentID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/"+contentID.String()+"/views", nil)
	req = addRouteParam(req, "contentId", contentID.String())
	resp := httptest.NewRecorder()
	RecordView(&testLedgerService{}, &testAccountsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRecordViewInvalidContentID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/nope/views", nil)
	req = req.WithContext(middleware.WithAccount(req.Context(), uuid.New(), "viewer", false))
	req = addRouteParam(req, "contentId", "nope")
	resp := httptest.NewRecorder()
	RecordView(&testLedgerService{}, &testAccountsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestViewStatusReportsViewed(t *testing.T) {
	svc := &testLedgerService{
		viewedFn: func(context.Context, uuid.UUID, uuid.UUID) (bool, error) { return true, nil },
	}
	contentID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/content/"+contentID.String()+"/views/me", nil)
	req = req.WithContext(middleware.WithAccount(req.Context(), uuid.New(), "viewer", false))
	req = addRouteParam(req, "contentId", contentID.String())
	resp := httptest.NewRecorder()
	ViewStatus(svc, testLogger())(resp, req)

	var envelope struct {
		Data struct {
			Viewed bool `json:"viewed"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Viewed {
		t.Fatal("expected viewed=true")
	}
}
