package warehouses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
)

const (
	warehousePrefix = "warehouse:"
	locationPrefix  = "location:"
)

// ErrNotFound indicates a missing warehouse or location.
var ErrNotFound = errors.New("warehouses: not found")

// Repository persists warehouse and location reference data.
type Repository interface {
	GetWarehouse(ctx context.Context, id string) (Warehouse, error)
	PutWarehouse(ctx context.Context, w Warehouse) error
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	GetLocation(ctx context.Context, warehouseID, id string) (Location, error)
	PutLocation(ctx context.Context, l Location) error
	ListLocations(ctx context.Context, warehouseID string) ([]Location, error)
}

type repository struct {
	store docstore.Store
}

// NewRepository constructs a document-store backed repository.
func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) GetWarehouse(ctx context.Context, id string) (Warehouse, error) {
	var w Warehouse
	if err := r.get(ctx, warehousePrefix+id, &w); err != nil {
		return Warehouse{}, err
	}
	return w, nil
}

func (r *repository) PutWarehouse(ctx context.Context, w Warehouse) error {
	return r.put(ctx, warehousePrefix+w.ID, w)
}

func (r *repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	docs, err := r.store.ListPrefix(ctx, warehousePrefix)
	if err != nil {
		return nil, err
	}
	out := make([]Warehouse, 0, len(docs))
	for _, doc := range docs {
		var w Warehouse
		if err := json.Unmarshal(doc.Value, &w); err != nil {
			return nil, fmt.Errorf("warehouses: decode %s: %w", doc.Key, err)
		}
		out = append(out, w)
	}
	return out, nil
}

func (r *repository) GetLocation(ctx context.Context, warehouseID, id string) (Location, error) {
	var l Location
	if err := r.get(ctx, locationKey(warehouseID, id), &l); err != nil {
		return Location{}, err
	}
	return l, nil
}

func (r *repository) PutLocation(ctx context.Context, l Location) error {
	return r.put(ctx, locationKey(l.WarehouseID, l.ID), l)
}

func (r *repository) ListLocations(ctx context.Context, warehouseID string) ([]Location, error) {
	docs, err := r.store.ListPrefix(ctx, locationPrefix+warehouseID+":")
	if err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(docs))
	for _, doc := range docs {
		var l Location
		if err := json.Unmarshal(doc.Value, &l); err != nil {
			return nil, fmt.Errorf("warehouses: decode %s: %w", doc.Key, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *repository) get(ctx context.Context, key string, dest any) error {
	doc, err := r.store.Get(ctx, key)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(doc.Value, dest)
}

func (r *repository) put(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = r.store.Put(ctx, key, encoded, docstore.VersionAny)
	return err
}

func locationKey(warehouseID, id string) string {
	return locationPrefix + warehouseID + ":" + id
}
