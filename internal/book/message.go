package book

// Wire shapes for the level2 channel. Each update carries the absolute new
// quantity at a price level, not a relative delta; new_quantity "0" means
// the level is gone.

// LevelUpdate is one (side, price, quantity) triple within an event.
type LevelUpdate struct {
	Side        string `json:"side"` // "bid" or "offer"
	PriceLevel  string `json:"price_level"`
	NewQuantity string `json:"new_quantity"`
}

// Event is a snapshot or update batch for one product.
type Event struct {
	Type      string        `json:"type"` // "snapshot" or "update"
	ProductID string        `json:"product_id"`
	Updates   []LevelUpdate `json:"updates"`
}

// Message is a level2 channel message as delivered by the feed.
type Message struct {
	Channel     string  `json:"channel"`
	Timestamp   string  `json:"timestamp"`
	SequenceNum int64   `json:"sequence_num"`
	Events      []Event `json:"events"`
}
