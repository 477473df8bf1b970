package warehouses

import (
	"context"
	"time"
)

// Service exposes warehouse and location reference data.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateWarehouse registers a warehouse.
func (s *Service) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	if err := s.validateWarehouse(w); err != nil {
		return Warehouse{}, err
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.PutWarehouse(ctx, w); err != nil {
		return Warehouse{}, err
	}
	return w, nil
}

// GetWarehouse fetches a warehouse by id.
func (s *Service) GetWarehouse(ctx context.Context, id string) (Warehouse, error) {
	return s.repo.GetWarehouse(ctx, id)
}

// ListWarehouses lists all warehouses.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

// CreateLocation registers a location inside an existing warehouse.
func (s *Service) CreateLocation(ctx context.Context, l Location) (Location, error) {
	if err := s.validateLocation(l); err != nil {
		return Location{}, err
	}
	if _, err := s.repo.GetWarehouse(ctx, l.WarehouseID); err != nil {
		return Location{}, err
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.PutLocation(ctx, l); err != nil {
		return Location{}, err
	}
	return l, nil
}

// ListLocations lists locations of a warehouse.
func (s *Service) ListLocations(ctx context.Context, warehouseID string) ([]Location, error) {
	return s.repo.ListLocations(ctx, warehouseID)
}

// Exists verifies the (warehouse, location) pair is registered.
func (s *Service) Exists(ctx context.Context, warehouseID, locationID string) error {
	if _, err := s.repo.GetWarehouse(ctx, warehouseID); err != nil {
		return err
	}
	_, err := s.repo.GetLocation(ctx, warehouseID, locationID)
	return err
}
