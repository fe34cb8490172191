// Package index implements the ID-ordered AVL tree that owns every
// StockRecord.
//
// Structural changes (insert of a new id, delete) and lookups are
// serialised by the tree's own RWMutex. Value changes on an existing
// record go through the record lock and never touch the tree shape.
// The server only changes the shape while loading, before any client
// traffic.
package index

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shubham-shewale/stock-orderbook/pkg/models"
)

var ErrNegativeValue = errors.New("quantity and price must be non-negative")

type node struct {
	stock  *models.StockRecord
	left   *node
	right  *node
	height int
}

// Tree is an AVL tree keyed by stock id.
type Tree struct {
	mu   sync.RWMutex
	root *node
	size int
}

func New() *Tree {
	return &Tree{}
}

// Len returns the number of records in the tree.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Height returns the height of the root (0 for an empty tree).
func (t *Tree) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return height(t.root)
}

// Upsert inserts a new record for id, or overwrites quantity and price of
// the existing one under its record lock. It returns the record.
func (t *Tree) Upsert(id, quantity, price int64) (*models.StockRecord, error) {
	if quantity < 0 || price < 0 {
		return nil, fmt.Errorf("upsert %d: %w", id, ErrNegativeValue)
	}

	// Updates of existing ids leave the shape alone, so a read lock is enough.
	t.mu.RLock()
	if n := t.find(id); n != nil {
		t.mu.RUnlock()
		n.stock.Set(quantity, price)
		return n.stock, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	var rec *models.StockRecord
	t.root = t.insert(t.root, id, quantity, price, &rec)
	return rec, nil
}

// Lookup returns the record for id.
func (t *Tree) Lookup(id int64) (*models.StockRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.find(id)
	if n == nil {
		return nil, false
	}
	return n.stock, true
}

// Delete removes id from the tree and reports whether it was present.
// Records handed out earlier stay valid; only the index entry goes away.
func (t *Tree) Delete(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed bool
	t.root = t.remove(t.root, id, &removed)
	if removed {
		t.size--
	}
	return removed
}

// Walk calls fn for every record in ascending id order.
// fn must not call back into the tree.
func (t *Tree) Walk(fn func(*models.StockRecord)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	walk(t.root, fn)
}

// Validate checks the search order, cached heights and balance factors.
func (t *Tree) Validate() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, err := validate(t.root, nil, nil)
	return err
}

// ---- internal helpers ----

func (t *Tree) find(id int64) *node {
	n := t.root
	for n != nil {
		switch {
		case id < n.stock.ID:
			n = n.left
		case id > n.stock.ID:
			n = n.right
		default:
			return n
		}
	}
	return nil
}

// insert returns the new root of the subtree; rotations may replace it.
func (t *Tree) insert(n *node, id, quantity, price int64, out **models.StockRecord) *node {
	if n == nil {
		rec := models.NewStockRecord(id, quantity, price)
		*out = rec
		t.size++
		return &node{stock: rec, height: 1}
	}

	switch {
	case id < n.stock.ID:
		n.left = t.insert(n.left, id, quantity, price, out)
	case id > n.stock.ID:
		n.right = t.insert(n.right, id, quantity, price, out)
	default:
		// Raced with another inserter between the read and write lock.
		n.stock.Set(quantity, price)
		*out = n.stock
		return n
	}

	fixHeight(n)
	bf := balance(n)

	// left-left
	if bf > 1 && id < n.left.stock.ID {
		return rotateRight(n)
	}
	// right-right
	if bf < -1 && id > n.right.stock.ID {
		return rotateLeft(n)
	}
	// left-right
	if bf > 1 && id > n.left.stock.ID {
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	}
	// right-left
	if bf < -1 && id < n.right.stock.ID {
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}
	return n
}

func (t *Tree) remove(n *node, id int64, removed *bool) *node {
	if n == nil {
		return nil
	}

	switch {
	case id < n.stock.ID:
		n.left = t.remove(n.left, id, removed)
	case id > n.stock.ID:
		n.right = t.remove(n.right, id, removed)
	default:
		*removed = true
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		// Two children: splice in the in-order successor.
		succ := n.right
		for succ.left != nil {
			succ = succ.left
		}
		n.stock = succ.stock
		var dropped bool
		n.right = t.remove(n.right, succ.stock.ID, &dropped)
	}

	return rebalance(n)
}

// rebalance restores the AVL invariant after a delete, where the inserted
// key is not available to pick the case, so child balance factors are used.
func rebalance(n *node) *node {
	fixHeight(n)
	bf := balance(n)

	if bf > 1 {
		if balance(n.left) < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	}
	if bf < -1 {
		if balance(n.right) > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	}
	return n
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left

	y.left = x
	x.right = t2

	fixHeight(x)
	fixHeight(y)
	return y
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right

	x.right = y
	y.left = t2

	fixHeight(y)
	fixHeight(x)
	return x
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func balance(n *node) int {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

func fixHeight(n *node) {
	n.height = 1 + max(height(n.left), height(n.right))
}

func walk(n *node, fn func(*models.StockRecord)) {
	if n == nil {
		return
	}
	walk(n.left, fn)
	fn(n.stock)
	walk(n.right, fn)
}

func validate(n *node, lo, hi *int64) (int, error) {
	if n == nil {
		return 0, nil
	}
	id := n.stock.ID
	if lo != nil && id <= *lo {
		return 0, fmt.Errorf("id %d violates lower bound %d", id, *lo)
	}
	if hi != nil && id >= *hi {
		return 0, fmt.Errorf("id %d violates upper bound %d", id, *hi)
	}

	lh, err := validate(n.left, lo, &id)
	if err != nil {
		return 0, err
	}
	rh, err := validate(n.right, &id, hi)
	if err != nil {
		return 0, err
	}

	h := 1 + max(lh, rh)
	if n.height != h {
		return 0, fmt.Errorf("id %d caches height %d, actual %d", id, n.height, h)
	}
	if bf := lh - rh; bf < -1 || bf > 1 {
		return 0, fmt.Errorf("id %d has balance factor %d", id, bf)
	}
	return h, nil
}
