package warehouses

import (
	"errors"
	"strings"
)

func (s *Service) validateWarehouse(w Warehouse) error {
	if strings.TrimSpace(w.ID) == "" {
		return errors.New("warehouse id is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return errors.New("warehouse name is required")
	}
	return nil
}

func (s *Service) validateLocation(l Location) error {
	if strings.TrimSpace(l.ID) == "" {
		return errors.New("location id is required")
	}
	if strings.TrimSpace(l.WarehouseID) == "" {
		return errors.New("location warehouse is required")
	}
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("location name is required")
	}
	return nil
}
