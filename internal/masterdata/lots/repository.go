package lots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
)

const lotPrefix = "lot:"

// Repository persists lot reference data.
type Repository interface {
	Get(ctx context.Context, id string) (Lot, error)
	Create(ctx context.Context, lot Lot) error
	Update(ctx context.Context, lot Lot) error
	List(ctx context.Context) ([]Lot, error)
}

type repository struct {
	store docstore.Store
}

// NewRepository constructs a document-store backed repository.
func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) Get(ctx context.Context, id string) (Lot, error) {
	doc, err := r.store.Get(ctx, lotPrefix+id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Lot{}, ErrNotFound
	}
	if err != nil {
		return Lot{}, err
	}
	var lot Lot
	if err := json.Unmarshal(doc.Value, &lot); err != nil {
		return Lot{}, fmt.Errorf("lots: decode %s: %w", id, err)
	}
	return lot, nil
}

func (r *repository) Create(ctx context.Context, lot Lot) error {
	encoded, err := json.Marshal(lot)
	if err != nil {
		return err
	}
	if _, err := r.store.Put(ctx, lotPrefix+lot.ID, encoded, 0); err != nil {
		if errors.Is(err, docstore.ErrVersionConflict) {
			return ErrLotExists
		}
		return err
	}
	return nil
}

func (r *repository) Update(ctx context.Context, lot Lot) error {
	encoded, err := json.Marshal(lot)
	if err != nil {
		return err
	}
	_, err = r.store.Put(ctx, lotPrefix+lot.ID, encoded, docstore.VersionAny)
	return err
}

func (r *repository) List(ctx context.Context) ([]Lot, error) {
	docs, err := r.store.ListPrefix(ctx, lotPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]Lot, 0, len(docs))
	for _, doc := range docs {
		var lot Lot
		if err := json.Unmarshal(doc.Value, &lot); err != nil {
			return nil, fmt.Errorf("lots: decode %s: %w", doc.Key, err)
		}
		out = append(out, lot)
	}
	return out, nil
}
