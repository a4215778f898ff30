package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
)

// Level is the stock held for one stocked product.
type Level struct {
	ProductID     uuid.UUID
	StockQuantity int
}

// Ledger is the only writer of products.stock_quantity. Each decrement is one conditional
// UPDATE, so concurrent orders for the same product can never take it below zero.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Read(ctx context.Context, productID uuid.UUID) (Level, error)
	TryReserve(ctx context.Context, productID uuid.UUID, qty int) (Level, error)
	Release(ctx context.Context, productID uuid.UUID, qty int) error
}

type ledger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db, now: time.Now}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &ledger{db: tx, now: l.now}
}

func (l *ledger) Read(ctx context.Context, productID uuid.UUID) (Level, error) {
	var row models.Product
	err := l.db.WithContext(ctx).
		Select("id", "kind", "stock_quantity").
		Where("id = ?", productID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Level{}, productNotFound(productID)
		}
		return Level{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock level")
	}
	if row.Kind != enums.ProductKindStocked {
		return Level{}, notStocked(productID)
	}
	return Level{ProductID: row.ID, StockQuantity: row.StockQuantity}, nil
}

func (l *ledger) TryReserve(ctx context.Context, productID uuid.UUID, qty int) (Level, error) {
	if qty <= 0 {
		return Level{}, invalidQuantity(qty)
	}
	res := l.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND kind = ? AND stock_quantity >= ?", productID, enums.ProductKindStocked, qty).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
			"updated_at":     l.now().UTC(),
		})
	if res.Error != nil {
		return Level{}, res.Error
	}
	current, err := l.Read(ctx, productID)
	if err != nil {
		return Level{}, err
	}
	if res.RowsAffected == 0 {
		return current, insufficientStock(productID, qty, current.StockQuantity)
	}
	return current, nil
}

// Release restocks units taken by a reservation that is being compensated.
func (l *ledger) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return invalidQuantity(qty)
	}
	res := l.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND kind = ?", productID, enums.ProductKindStocked).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
			"updated_at":     l.now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return productNotFound(productID)
	}
	return nil
}

func insufficientStock(productID uuid.UUID, requested, available int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock for product").
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"requested":  requested,
			"available":  available,
		})
}

func productNotFound(productID uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
		WithDetails(map[string]any{"product_id": productID.String()})
}

func notStocked(productID uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "product is not a stocked good").
		WithDetails(map[string]any{"product_id": productID.String()})
}

func invalidQuantity(qty int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
		WithDetails(map[string]any{"quantity": qty})
}
