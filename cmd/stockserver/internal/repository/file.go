package repository

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shubham-shewale/stock-orderbook/pkg/models"
)

// Compile-time check to ensure FileStore implements StockStore
var _ StockStore = (*FileStore)(nil)

// FileStore keeps the catalog in a plain text file, one "<id> <quantity> <price>"
// line per record, ascending id.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string { return f.path }

// Load reads every record. Blank lines are skipped; anything else that is
// not three non-negative integers is an error.
func (f *FileStore) Load() ([]models.StockRow, error) {
	fp, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open stock file: %w", err)
	}
	defer fp.Close()

	var rows []models.StockRow
	scanner := bufio.NewScanner(fp)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		row, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", f.path, lineNo, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stock file: %w", err)
	}
	return rows, nil
}

// Save truncates the file and writes rows sorted by id.
func (f *FileStore) Save(rows []models.StockRow) error {
	sorted := make([]models.StockRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	fp, err := os.Create(f.path)
	if err != nil {
		return fmt.Errorf("create stock file: %w", err)
	}

	w := bufio.NewWriter(fp)
	for _, r := range sorted {
		w.WriteString(r.String())
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		fp.Close()
		return fmt.Errorf("write stock file: %w", err)
	}
	if err := fp.Sync(); err != nil {
		fp.Close()
		return fmt.Errorf("sync stock file: %w", err)
	}
	return fp.Close()
}

func (f *FileStore) Close() error { return nil }

func parseRow(line string) (models.StockRow, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return models.StockRow{}, fmt.Errorf("expected 3 fields, got %d", len(parts))
	}

	var vals [3]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return models.StockRow{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	if vals[1] < 0 || vals[2] < 0 {
		return models.StockRow{}, fmt.Errorf("negative quantity or price in %q", line)
	}
	return models.StockRow{ID: vals[0], Quantity: vals[1], Price: vals[2]}, nil
}
