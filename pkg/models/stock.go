package models

import (
	"fmt"
	"sync"
)

// StockRecord is one tradable item. Quantity and Price are only read or
// written while the record lock is held.
type StockRecord struct {
	ID       int64
	Quantity int64
	Price    int64

	mu      sync.Mutex
	readers int // guarded by the catalog-wide lock, not by mu
}

func NewStockRecord(id, quantity, price int64) *StockRecord {
	return &StockRecord{ID: id, Quantity: quantity, Price: price}
}

// Lock takes exclusive access to the record's values.
func (r *StockRecord) Lock() { r.mu.Lock() }

// Unlock releases the record lock. The goroutine that unlocks does not have
// to be the one that locked, which the first/last reader hand-off relies on.
func (r *StockRecord) Unlock() { r.mu.Unlock() }

// Set overwrites quantity and price under the record lock.
func (r *StockRecord) Set(quantity, price int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Quantity = quantity
	r.Price = price
}

// Row copies the values. Callers must hold the record lock.
func (r *StockRecord) Row() StockRow {
	return StockRow{ID: r.ID, Quantity: r.Quantity, Price: r.Price}
}

// EnterRead increments the reader count and reports whether the caller is
// the first reader. Callers must hold the catalog lock.
func (r *StockRecord) EnterRead() bool {
	r.readers++
	return r.readers == 1
}

// ExitRead decrements the reader count and reports whether the caller was
// the last reader. Callers must hold the catalog lock.
func (r *StockRecord) ExitRead() bool {
	r.readers--
	return r.readers == 0
}

// StockRow is the plain value form of a record, used for listings and persistence.
type StockRow struct {
	ID       int64 `json:"id"`
	Quantity int64 `json:"quantity"`
	Price    int64 `json:"price"`
}

// String renders the row the way it appears on the wire and in the backing file.
func (s StockRow) String() string {
	return fmt.Sprintf("%d %d %d", s.ID, s.Quantity, s.Price)
}
