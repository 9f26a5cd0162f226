package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MenuStore persists imported restaurants and their menu items.
type MenuStore interface {
	UpsertRestaurant(ctx context.Context, name, status string) (string, error)
	UpsertItem(ctx context.Context, restaurantID string, item ItemRecord) error
}

type ItemRecord struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Available  bool   `json:"available"`
	Quantity   int    `json:"quantity"`
}

type restaurantRecord struct {
	Name   string       `json:"name"`
	Status string       `json:"status"`
	Menu   []ItemRecord `json:"menu"`
}

// JSONImporter reads a JSON array of restaurants with embedded menus
// and upserts them.
type JSONImporter struct {
	reader io.Reader
	store  MenuStore
}

func NewJSONImporter(r io.Reader, store MenuStore) *JSONImporter {
	return &JSONImporter{reader: r, store: store}
}

// Run imports every restaurant and returns counts of restaurants and
// items written. It stops at the first invalid record.
func (i *JSONImporter) Run(ctx context.Context) (int, int, error) {
	var records []restaurantRecord
	if err := json.NewDecoder(i.reader).Decode(&records); err != nil {
		return 0, 0, fmt.Errorf("decode import file: %w", err)
	}

	var restaurants, items int
	for _, rec := range records {
		if strings.TrimSpace(rec.Name) == "" {
			return restaurants, items, fmt.Errorf("restaurant %d: name required", restaurants)
		}
		status := rec.Status
		if status == "" {
			status = "pending"
		}

		restaurantID, err := i.store.UpsertRestaurant(ctx, rec.Name, status)
		if err != nil {
			return restaurants, items, fmt.Errorf("upsert restaurant %q: %w", rec.Name, err)
		}
		restaurants++

		for _, item := range rec.Menu {
			if strings.TrimSpace(item.Name) == "" {
				return restaurants, items, fmt.Errorf("restaurant %q: item name required", rec.Name)
			}
			if item.PriceCents < 0 {
				return restaurants, items, fmt.Errorf("item %q: negative price", item.Name)
			}
			if item.Quantity < 0 {
				return restaurants, items, fmt.Errorf("item %q: negative quantity", item.Name)
			}
			if err := i.store.UpsertItem(ctx, restaurantID, item); err != nil {
				return restaurants, items, fmt.Errorf("upsert item %q: %w", item.Name, err)
			}
			items++
		}
	}

	return restaurants, items, nil
}
