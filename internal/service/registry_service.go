package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/repository"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/shipment"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// RegistryService is the read-only view over farms and warehouses. It is
// the shipment.Directory used by every reducer.
type RegistryService interface {
	shipment.Directory
	ListFarms(ctx context.Context) ([]model.Farm, error)
	ListWarehouses(ctx context.Context) ([]model.Warehouse, error)
	// Preload fetches both selections of a patch concurrently and returns a
	// directory that answers them from memory.
	Preload(ctx context.Context, farmID, warehouseID *uuid.UUID) (shipment.Directory, error)
}

type registryService struct {
	farms      repository.FarmRepository
	warehouses repository.WarehouseRepository
}

func NewRegistryService(farms repository.FarmRepository, warehouses repository.WarehouseRepository) RegistryService {
	return &registryService{farms: farms, warehouses: warehouses}
}

// Farm reports a missing row as shipment.ErrUnknownFarm; database failures
// are returned as they are.
func (s *registryService) Farm(ctx context.Context, id uuid.UUID) (*model.Farm, error) {
	f, err := s.farms.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", shipment.ErrUnknownFarm, id)
	}
	if err != nil {
		return nil, fmt.Errorf("consultar fazenda: %w", err)
	}
	return f, nil
}

func (s *registryService) Warehouse(ctx context.Context, id uuid.UUID) (*model.Warehouse, error) {
	w, err := s.warehouses.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", shipment.ErrUnknownWarehouse, id)
	}
	if err != nil {
		return nil, fmt.Errorf("consultar armazem: %w", err)
	}
	return w, nil
}

func (s *registryService) ListFarms(ctx context.Context) ([]model.Farm, error) {
	return s.farms.List(ctx)
}

func (s *registryService) ListWarehouses(ctx context.Context) ([]model.Warehouse, error) {
	return s.warehouses.List(ctx)
}

func (s *registryService) Preload(ctx context.Context, farmID, warehouseID *uuid.UUID) (shipment.Directory, error) {
	d := &preloaded{next: s}
	g, gctx := errgroup.WithContext(ctx)
	if farmID != nil {
		g.Go(func() error {
			f, err := s.Farm(gctx, *farmID)
			if err != nil {
				return err
			}
			d.farm = f
			return nil
		})
	}
	if warehouseID != nil {
		g.Go(func() error {
			w, err := s.Warehouse(gctx, *warehouseID)
			if err != nil {
				return err
			}
			d.warehouse = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

type preloaded struct {
	next      shipment.Directory
	farm      *model.Farm
	warehouse *model.Warehouse
}

func (d *preloaded) Farm(ctx context.Context, id uuid.UUID) (*model.Farm, error) {
	if d.farm != nil && d.farm.ID == id {
		return d.farm, nil
	}
	return d.next.Farm(ctx, id)
}

func (d *preloaded) Warehouse(ctx context.Context, id uuid.UUID) (*model.Warehouse, error) {
	if d.warehouse != nil && d.warehouse.ID == id {
		return d.warehouse, nil
	}
	return d.next.Warehouse(ctx, id)
}
