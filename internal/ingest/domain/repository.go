package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository is the warehouse access surface for the ingest pipeline.
type Repository interface {
	OrderExists(ctx context.Context, db *gorm.DB, orderID string) (bool, error)
	InsertOrders(ctx context.Context, db *gorm.DB, rows []OrderRow) error
	InsertProducts(ctx context.Context, db *gorm.DB, rows []ProductRow) error
}
