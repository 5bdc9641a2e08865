package domain

// AuctionKindListings is the only auction kind this service runs.
const AuctionKindListings = "listings"

// AuctionRequest is a listings auction over a candidate pool. At most one of
// SearchQuery and CategoryID is set.
type AuctionRequest struct {
	Kind        string
	ProductIDs  []string
	Slots       int
	SearchQuery string
	CategoryID  string
}

// Winner is one sponsored product returned by the auction. Rank is the
// 0-based position in the auction response.
type Winner struct {
	ProductID     string
	Rank          int
	ResolvedBidID string
}
