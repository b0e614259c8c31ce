package repository

import (
	"context"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FarmRepository interface {
	Create(ctx context.Context, f *model.Farm) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Farm, error)
	List(ctx context.Context) ([]model.Farm, error)
}

type farmRepo struct{ db *gorm.DB }

func NewFarmRepository(db *gorm.DB) FarmRepository { return &farmRepo{db: db} }

func (r *farmRepo) Create(ctx context.Context, f *model.Farm) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *farmRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Farm, error) {
	var f model.Farm
	err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error
	return &f, err
}

func (r *farmRepo) List(ctx context.Context) ([]model.Farm, error) {
	var farms []model.Farm
	err := r.db.WithContext(ctx).Where("active = true").Order("name").Find(&farms).Error
	return farms, err
}

type WarehouseRepository interface {
	Create(ctx context.Context, w *model.Warehouse) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Warehouse, error)
	List(ctx context.Context) ([]model.Warehouse, error)
}

type warehouseRepo struct{ db *gorm.DB }

func NewWarehouseRepository(db *gorm.DB) WarehouseRepository { return &warehouseRepo{db: db} }

func (r *warehouseRepo) Create(ctx context.Context, w *model.Warehouse) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *warehouseRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Warehouse, error) {
	var w model.Warehouse
	err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error
	return &w, err
}

func (r *warehouseRepo) List(ctx context.Context) ([]model.Warehouse, error) {
	var ws []model.Warehouse
	err := r.db.WithContext(ctx).Where("active = true").Order("name").Find(&ws).Error
	return ws, err
}
