package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/starfeed/backend/api/middleware"
	"github.com/starfeed/backend/internal/accounts"
	"github.com/starfeed/backend/internal/content"
	"github.com/starfeed/backend/internal/ledger"
	"github.com/starfeed/backend/pkg/config"
	"github.com/starfeed/backend/pkg/db/models"
)

type fakeDLQ struct {
	rows  []models.OutboxDLQ
	limit int
}

func (f *fakeDLQ) DeadLetters(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	f.limit = limit
	return f.rows, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestAdminSuspendContentPassesReason(t *testing.T) {
	adminID := uuid.New()
	contentID := uuid.New()
	svc := &testContentService{
		suspendFn: func(ctx context.Context, aid, cid uuid.UUID, reason string) (*content.Item, error) {
			if aid != adminID || cid != contentID {
				t.Fatalf("unexpected ids %s %s", aid, cid)
			}
			if reason != "spam" {
				t.Fatalf("unexpected reason %q", reason)
			}
			return &content.Item{ID: cid}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/content/"+contentID.String()+"/suspend", strings.NewReader(`{"reason":" spam "}`))
	req = req.WithContext(middleware.WithAccount(req.Context(), adminID, "mod", true))
	req = addRouteParam(req, "contentId", contentID.String())
	resp := httptest.NewRecorder()
	AdminSuspendContent(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d body %s", resp.Code, resp.Body.String())
	}
}

func TestAdminSuspendContentRequiresReason(t *testing.T) {
	contentID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/content/"+contentID.String()+"/suspend", strings.NewReader(`{}`))
	req = req.WithContext(middleware.WithAccount(req.Context(), uuid.New(), "mod", true))
	req = addRouteParam(req, "contentId", contentID.String())
	resp := httptest.NewRecorder()
	AdminSuspendContent(&testContentService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminPlatformRevenueSince(t *testing.T) {
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := &testLedgerService{
		revenueFn: func(ctx context.Context, since time.Time) (*ledger.Revenue, error) {
			if !since.Equal(want) {
				t.Fatalf("unexpected since %v", since)
			}
			return &ledger.Revenue{Since: since, PlatformNGN: decimal.NewFromInt(300)}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/revenue?since=2026-01-01T00:00:00Z", nil)
	resp := httptest.NewRecorder()
	AdminPlatformRevenue(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestAdminPlatformRevenueBadSince(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/revenue?since=yesterday", nil)
	resp := httptest.NewRecorder()
	AdminPlatformRevenue(&testLedgerService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminGrantStars(t *testing.T) {
	accountID := uuid.New()
	granted := 0
	svc := &testAccountsService{
		grantFn: func(ctx context.Context, id uuid.UUID, stars int) (*accounts.Balance, error) {
			if id != accountID {
				t.Fatalf("unexpected account %s", id)
			}
			granted = stars
			return &accounts.Balance{AccountID: id, StarBalance: stars}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/accounts/"+accountID.String()+"/stars", strings.NewReader(`{"stars":25}`))
	req = addRouteParam(req, "accountId", accountID.String())
	resp := httptest.NewRecorder()
	AdminGrantStars(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d body %s", resp.Code, resp.Body.String())
	}
	if granted != 25 {
		t.Fatalf("expected 25 stars granted got %d", granted)
	}
}

func TestAdminListOutboxDLQLimit(t *testing.T) {
	repo := &fakeDLQ{rows: []models.OutboxDLQ{{EventType: "star_view_charged"}}}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dlq?limit=10", nil)
	resp := httptest.NewRecorder()
	AdminListOutboxDLQ(repo, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if repo.limit != 10 {
		t.Fatalf("expected limit 10 got %d", repo.limit)
	}
}

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	handler := HealthReady(cfg, testLogger(), map[string]Pinger{
		"db":    fakePinger{},
		"redis": fakePinger{err: errors.New("dial tcp: refused")},
	})

	resp := httptest.NewRecorder()
	handler(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if resp.Header().Get("X-Starfeed-Env") != "dev" {
		t.Fatal("expected env header")
	}

	ok := HealthReady(cfg, testLogger(), map[string]Pinger{"db": fakePinger{}})
	resp = httptest.NewRecorder()
	ok(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
