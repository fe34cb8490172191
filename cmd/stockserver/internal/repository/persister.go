package repository

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-orderbook/pkg/models"
)

// Snapshotter is the read side of the catalog.
type Snapshotter interface {
	Show() []models.StockRow
}

// Upserter is the write side of the order index used while loading.
type Upserter interface {
	Upsert(id, quantity, price int64) (*models.StockRecord, error)
}

// Persister rewrites the whole backing store from the catalog. One lock is
// shared by every session, so two sessions ending together never interleave
// their writes.
type Persister struct {
	mu     sync.Mutex
	source Snapshotter
	store  StockStore
	mirror Mirror
	logger *zap.Logger
}

// NewPersister wires the catalog to the store. mirror may be nil.
func NewPersister(source Snapshotter, store StockStore, mirror Mirror, logger *zap.Logger) *Persister {
	return &Persister{
		source: source,
		store:  store,
		mirror: mirror,
		logger: logger,
	}
}

func (p *Persister) Persist(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows := p.source.Show()
	if err := p.store.Save(rows); err != nil {
		return fmt.Errorf("persist catalog: %w", err)
	}

	if p.mirror != nil {
		if err := p.mirror.Mirror(ctx, rows); err != nil {
			p.logger.Warn("Catalog mirror failed", zap.Error(err), zap.Int("rows", len(rows)))
		}
	}
	p.logger.Debug("Catalog persisted", zap.Int("rows", len(rows)))
	return nil
}

// Restore loads every stored row into the index. It must run before the
// server accepts connections.
func Restore(store StockStore, idx Upserter) (int, error) {
	rows, err := store.Load()
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if _, err := idx.Upsert(r.ID, r.Quantity, r.Price); err != nil {
			return 0, fmt.Errorf("restore stock %d: %w", r.ID, err)
		}
	}
	return len(rows), nil
}
