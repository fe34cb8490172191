package repository

import (
	"context"

	"github.com/shubham-shewale/stock-orderbook/pkg/models"
)

// StockStore is the backing store the catalog is loaded from at startup
// and rewritten to when a session ends.
type StockStore interface {
	Load() ([]models.StockRow, error)
	Save(rows []models.StockRow) error
	Close() error
}

// Publisher receives every successful buy and sell.
type Publisher interface {
	Publish(ctx context.Context, update models.StockUpdate) error
}

// Mirror receives the full catalog each time it is persisted.
type Mirror interface {
	Mirror(ctx context.Context, rows []models.StockRow) error
}
