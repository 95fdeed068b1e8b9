// Package checkpoint persists the warehouse fact watermark on local disk.
package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

var factWatermarkKey = []byte("watermark/fact_sales/order_item_id")

// PebbleWatermark implements service.Watermark using PebbleDB
type PebbleWatermark struct {
	db *pebble.DB
}

// Open opens (or creates) the checkpoint database in dir
func Open(dir string) (*PebbleWatermark, error) {
	d, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleWatermark{db: d}, nil
}

func (p *PebbleWatermark) Close() error { return p.db.Close() }

// Load returns the last saved order item id, or 0 when none was saved
func (p *PebbleWatermark) Load() (int64, error) {
	v, closer, err := p.db.Get(factWatermarkKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()

	if len(v) != 8 {
		return 0, fmt.Errorf("corrupt watermark: %d bytes", len(v))
	}
	return int64(binary.BigEndian.Uint64(v)), nil
}

// Save records orderItemID durably. It never moves the watermark backwards.
func (p *PebbleWatermark) Save(orderItemID int64) error {
	cur, err := p.Load()
	if err != nil {
		return err
	}
	if orderItemID <= cur {
		return nil
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(orderItemID))
	if err := p.db.Set(factWatermarkKey, buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

// Reset forgets the watermark so the next transform scans every order item
func (p *PebbleWatermark) Reset() error {
	if err := p.db.Delete(factWatermarkKey, pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	return nil
}
