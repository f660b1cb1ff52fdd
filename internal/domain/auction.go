package domain

import "encoding/json"

// CopperPerGold converts raw copper prices into display units.
const CopperPerGold = 10000

// AuctionRecord represents one auction line-item of a snapshot.
// Corresponds to auctions table in PostgreSQL.
type AuctionRecord struct {
	AuctionID  int64           // feed auction id (auc)
	ItemID     int64           // item being sold
	Owner      string          // seller character name
	OwnerRealm string          // seller realm
	Bid        int64           // current bid (copper)
	Buyout     int64           // buyout price (copper), 0 if none
	Quantity   int64           // stack size
	TimeLeft   string          // SHORT | MEDIUM | LONG | VERY_LONG
	Timestamp  int64           // snapshot timestamp (ms), injected from the descriptor
	Raw        json.RawMessage // verbatim feed entry
}

// UnitPrice returns the per-unit price in copper, taking the larger of bid
// and buyout. Returns false when quantity is not positive.
func (a *AuctionRecord) UnitPrice() (float64, bool) {
	if a.Quantity <= 0 {
		return 0, false
	}
	price := a.Bid
	if a.Buyout > price {
		price = a.Buyout
	}
	return float64(price) / float64(a.Quantity), true
}
