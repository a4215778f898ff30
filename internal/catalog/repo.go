package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
)

// Repository reads and writes catalog products.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)
	ListActive(ctx context.Context, kind *enums.ProductKind) ([]Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Count(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (Product, error) {
	var row models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id.String()})
		}
		return Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return FromModel(row), nil
}

// FindByIDs loads every referenced product in one query. Missing ids are simply absent
// from the result; callers decide whether that is an error.
func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	out := make(map[uuid.UUID]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	for _, row := range rows {
		out[row.ID] = FromModel(row)
	}
	return out, nil
}

func (r *repository) ListActive(ctx context.Context, kind *enums.ProductKind) ([]Product, error) {
	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if kind != nil {
		query = query.Where("kind = ?", *kind)
	}
	var rows []models.Product
	if err := query.Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, FromModel(row))
	}
	return products, nil
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	if err := product.Validate(); err != nil {
		return Product{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	row := product.ToModel()
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return FromModel(row), nil
}

// Count includes inactive products.
func (r *repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	return n, nil
}
