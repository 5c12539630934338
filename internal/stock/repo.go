package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/db/models"
)

// Repository moves inventory counters and appends ledger rows. Decrements are
// conditional single statements so concurrent checkouts can never drive stock
// negative; zero rows affected means the stock was not there.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	DecrementProduct(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error)
	IncrementProduct(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error)
	DecrementVariant(ctx context.Context, variantID uuid.UUID, qty int) (int, bool, error)
	IncrementVariant(ctx context.Context, variantID uuid.UUID, qty int) (int, bool, error)

	AppendLog(ctx context.Context, log *models.StockLog) error
	FindLogByID(ctx context.Context, id uuid.UUID) (*models.StockLog, error)
	ListLogs(ctx context.Context, productID *uuid.UUID) ([]models.StockLog, error)
	UpdateLog(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// DecrementProduct subtracts qty only while enough stock remains. Returns the
// resulting stock and whether the decrement happened.
func (r *repository) DecrementProduct(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	newStock, err := r.productStock(ctx, productID)
	return newStock, true, err
}

// IncrementProduct adds qty back. Returns ok=false when no product row
// matched, so callers can tell a vanished target from a restored one.
func (r *repository) IncrementProduct(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	newStock, err := r.productStock(ctx, productID)
	return newStock, true, err
}

func (r *repository) DecrementVariant(ctx context.Context, variantID uuid.UUID, qty int) (int, bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock >= ?", variantID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	newStock, err := r.variantStock(ctx, variantID)
	return newStock, true, err
}

func (r *repository) IncrementVariant(ctx context.Context, variantID uuid.UUID, qty int) (int, bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	newStock, err := r.variantStock(ctx, variantID)
	return newStock, true, err
}

func (r *repository) AppendLog(ctx context.Context, log *models.StockLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) FindLogByID(ctx context.Context, id uuid.UUID) (*models.StockLog, error) {
	var log models.StockLog
	if err := r.db.WithContext(ctx).First(&log, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *repository) ListLogs(ctx context.Context, productID *uuid.UUID) ([]models.StockLog, error) {
	qb := r.db.WithContext(ctx).Model(&models.StockLog{})
	if productID != nil {
		qb = qb.Where("product_id = ?", *productID)
	}
	var logs []models.StockLog
	err := qb.Order("created_at DESC").Find(&logs).Error
	return logs, err
}

func (r *repository) UpdateLog(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.StockLog{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) productStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var stock int
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Select("stock").
		Scan(&stock).Error
	return stock, err
}

func (r *repository) variantStock(ctx context.Context, variantID uuid.UUID) (int, error) {
	var stock int
	err := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Select("stock").
		Scan(&stock).Error
	return stock, err
}
