package repository

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/shubham-shewale/stock-orderbook/pkg/models"
)

var _ StockStore = (*PebbleStore)(nil)

var (
	keyLower = []byte("stock/")
	keyUpper = []byte("stock0") // '/' + 1
)

// PebbleStore keeps one key per record under the "stock/" prefix.
// Keys sort by id, so Load returns rows in ascending id order.
type PebbleStore struct {
	db *pebble.DB
}

func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (p *PebbleStore) Load() ([]models.StockRow, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: keyLower,
		UpperBound: keyUpper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var rows []models.StockRow
	for iter.First(); iter.Valid(); iter.Next() {
		row, err := decodeRow(iter.Key(), iter.Value())
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, iter.Error()
}

// Save replaces every stored record with rows in one synced batch.
func (p *PebbleStore) Save(rows []models.StockRow) error {
	b := p.db.NewBatch()
	defer b.Close()

	if err := b.DeleteRange(keyLower, keyUpper, nil); err != nil {
		return err
	}
	for _, r := range rows {
		if err := b.Set(keyFor(r.ID), encodeValue(r), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}

// key: "stock/" + 8 byte big-endian id with the sign bit flipped, so
// negative ids sort before positive ones.
func keyFor(id int64) []byte {
	k := make([]byte, len(keyLower)+8)
	copy(k, keyLower)
	binary.BigEndian.PutUint64(k[len(keyLower):], uint64(id)^(1<<63))
	return k
}

// value: [quantity:8][price:8]
func encodeValue(r models.StockRow) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.Quantity))
	binary.BigEndian.PutUint64(buf[8:16], uint64(r.Price))
	return buf
}

func decodeRow(key, val []byte) (models.StockRow, error) {
	if len(key) != len(keyLower)+8 || len(val) != 16 {
		return models.StockRow{}, errors.New("invalid stock record encoding")
	}
	return models.StockRow{
		ID:       int64(binary.BigEndian.Uint64(key[len(keyLower):]) ^ (1 << 63)),
		Quantity: int64(binary.BigEndian.Uint64(val[0:8])),
		Price:    int64(binary.BigEndian.Uint64(val[8:16])),
	}, nil
}
