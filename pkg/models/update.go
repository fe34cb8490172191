package models

// StockUpdate is published after a successful buy or sell.
type StockUpdate struct {
	ID        int64  `json:"id"`
	Action    string `json:"action"` // "buy" or "sell"
	Delta     int64  `json:"delta"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price"`
	Timestamp int64  `json:"timestamp"` // unix micro
	SeqID     int64  `json:"seq_id"`    // monotonic per process
	Session   string `json:"session,omitempty"`
}
