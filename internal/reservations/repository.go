package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
)

const reservationPrefix = "reservation:"

// Repository persists reservations.
type Repository interface {
	Get(ctx context.Context, id string) (Reservation, error)
	Put(ctx context.Context, r Reservation) error
	List(ctx context.Context) ([]Reservation, error)
}

type repository struct {
	store docstore.Store
}

// NewRepository constructs a document-store backed repository.
func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) Get(ctx context.Context, id string) (Reservation, error) {
	doc, err := r.store.Get(ctx, reservationPrefix+id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Reservation{}, ErrNotFound
	}
	if err != nil {
		return Reservation{}, err
	}
	var rsv Reservation
	if err := json.Unmarshal(doc.Value, &rsv); err != nil {
		return Reservation{}, fmt.Errorf("reservations: decode %s: %w", id, err)
	}
	return rsv, nil
}

func (r *repository) Put(ctx context.Context, rsv Reservation) error {
	encoded, err := json.Marshal(rsv)
	if err != nil {
		return err
	}
	_, err = r.store.Put(ctx, reservationPrefix+rsv.ID, encoded, docstore.VersionAny)
	return err
}

func (r *repository) List(ctx context.Context) ([]Reservation, error) {
	docs, err := r.store.ListPrefix(ctx, reservationPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]Reservation, 0, len(docs))
	for _, doc := range docs {
		var rsv Reservation
		if err := json.Unmarshal(doc.Value, &rsv); err != nil {
			return nil, fmt.Errorf("reservations: decode %s: %w", doc.Key, err)
		}
		out = append(out, rsv)
	}
	return out, nil
}
