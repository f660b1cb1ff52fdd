package feed

import (
	"encoding/json"
	"fmt"

	"wow-auction-lab/internal/domain"
)

// auctionEntry is the subset of an auction line-item the pipeline reads.
// Every other field survives in AuctionRecord.Raw.
type auctionEntry struct {
	Auc        int64  `json:"auc"`
	Item       int64  `json:"item"`
	Owner      string `json:"owner"`
	OwnerRealm string `json:"ownerRealm"`
	Bid        int64  `json:"bid"`
	Buyout     int64  `json:"buyout"`
	Quantity   int64  `json:"quantity"`
	TimeLeft   string `json:"timeLeft"`
}

type snapshotDoc struct {
	Realms   []json.RawMessage `json:"realms"`
	Auctions []json.RawMessage `json:"auctions"`
}

// ParseSnapshot decodes a snapshot body into auction records tagged with timestamp.
func ParseSnapshot(body []byte, timestamp int64) ([]*domain.AuctionRecord, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	records := make([]*domain.AuctionRecord, 0, len(doc.Auctions))
	for i, raw := range doc.Auctions {
		var e auctionEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode auction %d: %w", i, err)
		}
		records = append(records, &domain.AuctionRecord{
			AuctionID:  e.Auc,
			ItemID:     e.Item,
			Owner:      e.Owner,
			OwnerRealm: e.OwnerRealm,
			Bid:        e.Bid,
			Buyout:     e.Buyout,
			Quantity:   e.Quantity,
			TimeLeft:   e.TimeLeft,
			Timestamp:  timestamp,
			Raw:        raw,
		})
	}
	return records, nil
}

// ItemName extracts the name field from an item document, empty if absent.
func ItemName(doc json.RawMessage) string {
	var v struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(doc, &v); err != nil {
		return ""
	}
	return v.Name
}
