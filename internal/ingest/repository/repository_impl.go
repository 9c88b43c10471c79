package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/orderlake/internal/config"
	"github.com/smallbiznis/orderlake/internal/ingest/domain"
	"gorm.io/gorm"
)

type repo struct {
	ordersTable   string
	productsTable string
}

// Provide builds the warehouse repository. Table names come from
// configuration and were already validated as bare SQL identifiers, so
// interpolating them into statements is safe here.
func Provide(cfg config.Config) domain.Repository {
	return &repo{
		ordersTable:   cfg.OrdersTable,
		productsTable: cfg.OrderProductsTable,
	}
}

func (r *repo) OrderExists(ctx context.Context, db *gorm.DB, orderID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE order_id = ? LIMIT 1`, r.ordersTable),
		orderID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertOrders(ctx context.Context, db *gorm.DB, rows []domain.OrderRow) error {
	if len(rows) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []any
	)
	for _, row := range rows {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			row.ID,
			row.OrderID,
			row.OccurredAt,
			row.ShopID,
			row.TotalPrice,
			row.TotalDiscounts,
			row.Currency,
			row.Source,
			row.ReceivedAt,
		)
	}

	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`INSERT INTO %s (
			id, order_id, occurred_at, shop_id, total_price, total_discounts,
			currency, source, received_at
		) VALUES %s`, r.ordersTable, strings.Join(placeholders, ", ")),
		args...,
	).Error
}

func (r *repo) InsertProducts(ctx context.Context, db *gorm.DB, rows []domain.ProductRow) error {
	if len(rows) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []any
	)
	for _, row := range rows {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			row.ID,
			row.OrderID,
			row.OccurredAt,
			row.ShopID,
			row.ProductID,
			row.Title,
			row.VariantID,
			row.VariantTitle,
			row.Vendor,
			row.Quantity,
			row.Price,
			row.Discount,
			row.Currency,
			row.Source,
			row.ReceivedAt,
		)
	}

	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`INSERT INTO %s (
			id, order_id, occurred_at, shop_id, product_id, title, variant_id,
			variant_title, vendor, quantity, price, discount, currency, source, received_at
		) VALUES %s`, r.productsTable, strings.Join(placeholders, ", ")),
		args...,
	).Error
}
