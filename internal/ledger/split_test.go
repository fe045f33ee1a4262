package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSplitStars(t *testing.T) {
	cases := []struct {
		stars    int
		owner    string
		viewer   string
		platform string
	}{
		{stars: 1, owner: "300", viewer: "100", platform: "100"},
		{stars: 3, owner: "900", viewer: "300", platform: "300"},
		{stars: 5, owner: "1500", viewer: "500", platform: "500"},
	}
	for _, tc := range cases {
		shares := SplitStars(tc.stars, DefaultStarValueNGN)
		assert.True(t, shares.Owner.Equal(decimal.RequireFromString(tc.owner)), "owner share for %d stars: %s", tc.stars, shares.Owner)
		assert.True(t, shares.Viewer.Equal(decimal.RequireFromString(tc.viewer)), "viewer share for %d stars: %s", tc.stars, shares.Viewer)
		assert.True(t, shares.Platform.Equal(decimal.RequireFromString(tc.platform)), "platform share for %d stars: %s", tc.stars, shares.Platform)
	}
}

func TestSplitStarsConservesTotal(t *testing.T) {
	for _, starValue := range []int64{1, 7, 333, 500} {
		for stars := 1; stars <= 5; stars++ {
			shares := SplitStars(stars, starValue)
			want := decimal.NewFromInt(int64(stars) * starValue)
			assert.True(t, shares.Total.Equal(want))
			assert.True(t, shares.Owner.Add(shares.Viewer).Add(shares.Platform).Equal(want),
				"split of %d stars at %d must sum to the total", stars, starValue)
		}
	}
}
