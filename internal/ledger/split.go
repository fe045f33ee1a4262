package ledger

import "github.com/shopspring/decimal"

// DefaultStarValueNGN is the naira value of one star.
const DefaultStarValueNGN int64 = 500

// Split percentages. They must add up to 100.
const (
	ownerSharePercent  = 60
	viewerSharePercent = 20
)

var hundred = decimal.NewFromInt(100)

// Shares is the NGN split of one charged view.
type Shares struct {
	Total    decimal.Decimal `json:"total_ngn"`
	Owner    decimal.Decimal `json:"owner_ngn"`
	Viewer   decimal.Decimal `json:"viewer_ngn"`
	Platform decimal.Decimal `json:"platform_ngn"`
}

// SplitStars converts stars to NGN and splits the total 60/20/20. The platform
// share is the remainder, so the three parts always sum to the total.
func SplitStars(stars int, starValueNGN int64) Shares {
	total := decimal.NewFromInt(int64(stars)).Mul(decimal.NewFromInt(starValueNGN))
	owner := total.Mul(decimal.NewFromInt(ownerSharePercent)).Div(hundred).Round(2)
	viewer := total.Mul(decimal.NewFromInt(viewerSharePercent)).Div(hundred).Round(2)
	return Shares{
		Total:    total,
		Owner:    owner,
		Viewer:   viewer,
		Platform: total.Sub(owner).Sub(viewer),
	}
}
