package domain

import "encoding/json"

// ItemMetadata represents descriptive data for one item id.
// Corresponds to items table in PostgreSQL; upserted by ItemID.
type ItemMetadata struct {
	ItemID    int64           // PRIMARY KEY
	Name      string          // item name as reported by the feed
	Raw       json.RawMessage // verbatim item document
	FetchedAt int64           // when metadata was fetched (ms)
}
