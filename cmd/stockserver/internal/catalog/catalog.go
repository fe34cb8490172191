// Package catalog keeps a fixed directory of every record in the index,
// built once at load time, so listings never walk the tree.
//
// Listing uses a first/last reader hand-off: readers count themselves in
// under the catalog lock, the first one takes the record lock for the whole
// group and the last one releases it. Buy and sell take the record lock
// directly. Readers are never blocked by each other, and a steady stream of
// readers can starve a writer on the same record; nothing here prefers
// writers.
package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shubham-shewale/stock-orderbook/pkg/models"
)

var (
	ErrNotFound          = errors.New("stock not found")
	ErrInsufficientStock = errors.New("not enough left stocks")
	ErrCapacityExceeded  = errors.New("catalog capacity exceeded")
	ErrNegativeQuantity  = errors.New("quantity must be non-negative")
)

// Index is the lookup side of the order index.
type Index interface {
	Lookup(id int64) (*models.StockRecord, bool)
	Walk(fn func(*models.StockRecord))
}

type Catalog struct {
	index    Index
	entries  []*models.StockRecord
	capacity int

	// mu only guards the per-record reader counts.
	mu sync.Mutex
}

func New(index Index, capacity int) *Catalog {
	return &Catalog{
		index:    index,
		entries:  make([]*models.StockRecord, 0, capacity),
		capacity: capacity,
	}
}

// Build assigns a slot to every record of the index in ascending id order.
// Slots are stable afterwards. It must run before the catalog is shared.
func (c *Catalog) Build() error {
	entries := make([]*models.StockRecord, 0, c.capacity)
	var overflow int
	c.index.Walk(func(r *models.StockRecord) {
		if len(entries) == c.capacity {
			overflow++
			return
		}
		entries = append(entries, r)
	})
	if overflow > 0 {
		return fmt.Errorf("%w: %d records, capacity %d", ErrCapacityExceeded, len(entries)+overflow, c.capacity)
	}
	c.entries = entries
	return nil
}

func (c *Catalog) Len() int      { return len(c.entries) }
func (c *Catalog) Capacity() int { return c.capacity }

// Show returns every record in catalog order. Each row is consistent on its
// own; buys and sells may land between rows.
func (c *Catalog) Show() []models.StockRow {
	rows := make([]models.StockRow, 0, len(c.entries))
	for _, r := range c.entries {
		rows = append(rows, c.read(r))
	}
	return rows
}

func (c *Catalog) read(r *models.StockRecord) models.StockRow {
	c.mu.Lock()
	if r.EnterRead() {
		r.Lock()
	}
	c.mu.Unlock()

	row := r.Row()

	c.mu.Lock()
	if r.ExitRead() {
		r.Unlock()
	}
	c.mu.Unlock()
	return row
}

// Buy takes quantity units of id out of stock.
func (c *Catalog) Buy(id, quantity int64) (models.StockRow, error) {
	if quantity < 0 {
		return models.StockRow{}, ErrNegativeQuantity
	}
	r, ok := c.index.Lookup(id)
	if !ok {
		return models.StockRow{}, fmt.Errorf("buy %d: %w", id, ErrNotFound)
	}

	r.Lock()
	defer r.Unlock()

	if r.Quantity < quantity {
		return r.Row(), fmt.Errorf("buy %d x%d: %w", id, quantity, ErrInsufficientStock)
	}
	r.Quantity -= quantity
	return r.Row(), nil
}

// Sell puts quantity units of id back into stock. There is no upper bound.
func (c *Catalog) Sell(id, quantity int64) (models.StockRow, error) {
	if quantity < 0 {
		return models.StockRow{}, ErrNegativeQuantity
	}
	r, ok := c.index.Lookup(id)
	if !ok {
		return models.StockRow{}, fmt.Errorf("sell %d: %w", id, ErrNotFound)
	}

	r.Lock()
	defer r.Unlock()

	r.Quantity += quantity
	return r.Row(), nil
}
