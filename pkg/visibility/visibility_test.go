package visibility

import (
	"testing"

	"github.com/google/uuid"

	"github.com/starfeed/backend/pkg/db/models"
	"github.com/starfeed/backend/pkg/enums"
	"github.com/starfeed/backend/pkg/errors"
)

func pricedItem(owner uuid.UUID, status enums.ContentStatus) *models.ContentItem {
	return &models.ContentItem{
		ID:             uuid.New(),
		OwnerAccountID: owner,
		StarPrice:      2,
		Status:         status,
	}
}

func TestEnsureContentVisible(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()

	t.Run("missing item", func(t *testing.T) {
		err := EnsureContentVisible(ContentVisibilityInput{ViewerID: stranger})
		if err == nil || errors.As(err).Code() != errors.CodeContentUnavailable {
			t.Fatalf("expected content unavailable, got %v", err)
		}
	})
	t.Run("active item", func(t *testing.T) {
		item := pricedItem(owner, enums.ContentStatusActive)
		if err := EnsureContentVisible(ContentVisibilityInput{Item: item, ViewerID: stranger}); err != nil {
			t.Fatalf("expected visible, got %v", err)
		}
	})
	t.Run("suspended hidden from strangers", func(t *testing.T) {
		item := pricedItem(owner, enums.ContentStatusSuspended)
		err := EnsureContentVisible(ContentVisibilityInput{Item: item, ViewerID: stranger})
		if err == nil || errors.As(err).Code() != errors.CodeContentUnavailable {
			t.Fatalf("expected content unavailable, got %v", err)
		}
	})
	t.Run("suspended visible to owner", func(t *testing.T) {
		item := pricedItem(owner, enums.ContentStatusSuspended)
		if err := EnsureContentVisible(ContentVisibilityInput{Item: item, ViewerID: owner}); err != nil {
			t.Fatalf("expected owner access, got %v", err)
		}
	})
	t.Run("suspended visible to admin", func(t *testing.T) {
		item := pricedItem(owner, enums.ContentStatusSuspended)
		if err := EnsureContentVisible(ContentVisibilityInput{Item: item, ViewerID: stranger, IsAdmin: true}); err != nil {
			t.Fatalf("expected admin access, got %v", err)
		}
	})
}

func TestNeedsUnlock(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	free := pricedItem(owner, enums.ContentStatusActive)
	free.StarPrice = 0

	cases := []struct {
		name  string
		input ContentVisibilityInput
		want  bool
	}{
		{name: "free content", input: ContentVisibilityInput{Item: free, ViewerID: stranger}, want: false},
		{name: "priced for stranger", input: ContentVisibilityInput{Item: pricedItem(owner, enums.ContentStatusActive), ViewerID: stranger}, want: true},
		{name: "priced for owner", input: ContentVisibilityInput{Item: pricedItem(owner, enums.ContentStatusActive), ViewerID: owner}, want: false},
		{name: "priced for admin", input: ContentVisibilityInput{Item: pricedItem(owner, enums.ContentStatusActive), ViewerID: stranger, IsAdmin: true}, want: false},
		{name: "anonymous viewer", input: ContentVisibilityInput{Item: pricedItem(owner, enums.ContentStatusActive)}, want: true},
		{name: "nil item", input: ContentVisibilityInput{ViewerID: stranger}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsUnlock(tc.input); got != tc.want {
				t.Fatalf("NeedsUnlock = %v, want %v", got, tc.want)
			}
		})
	}
}
