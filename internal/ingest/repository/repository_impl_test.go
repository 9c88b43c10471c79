package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/orderlake/internal/config"
	"github.com/smallbiznis/orderlake/internal/ingest/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		order_id TEXT NOT NULL,
		occurred_at DATETIME NOT NULL,
		shop_id TEXT NOT NULL,
		total_price NUMERIC NOT NULL DEFAULT 0,
		total_discounts NUMERIC NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		source TEXT NOT NULL,
		received_at DATETIME NOT NULL
	)`).Error)

	require.NoError(t, db.Exec(`CREATE TABLE order_products (
		id INTEGER PRIMARY KEY,
		order_id TEXT NOT NULL,
		occurred_at DATETIME NOT NULL,
		shop_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		title TEXT,
		variant_id TEXT,
		variant_title TEXT,
		vendor TEXT,
		quantity INTEGER NOT NULL DEFAULT 0,
		price NUMERIC NOT NULL DEFAULT 0,
		discount NUMERIC NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		source TEXT NOT NULL,
		received_at DATETIME NOT NULL
	)`).Error)

	return db
}

func testRepo() domain.Repository {
	return Provide(config.Config{
		OrdersTable:        "orders",
		OrderProductsTable: "order_products",
	})
}

func TestOrderExists(t *testing.T) {
	db := openTestDB(t)
	repo := testRepo()
	ctx := context.Background()
	node, _ := snowflake.NewNode(1)
	now := time.Now().UTC()

	exists, err := repo.OrderExists(ctx, db, "123")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.InsertOrders(ctx, db, []domain.OrderRow{{
		ID:         node.Generate(),
		OrderID:    "123",
		OccurredAt: now,
		ShopID:     "shop-1",
		TotalPrice: decimal.RequireFromString("50.00"),
		Currency:   "USD",
		Source:     domain.SourceStorefrontWebhook,
		ReceivedAt: now,
	}}))

	exists, err = repo.OrderExists(ctx, db, "123")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.OrderExists(ctx, db, "124")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInsertProductsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := testRepo()
	ctx := context.Background()
	node, _ := snowflake.NewNode(1)
	now := time.Now().UTC()

	title := "Widget"
	require.NoError(t, repo.InsertProducts(ctx, db, []domain.ProductRow{
		{
			ID:         node.Generate(),
			OrderID:    "123",
			OccurredAt: now,
			ShopID:     "shop-1",
			ProductID:  "9",
			Title:      &title,
			Quantity:   2,
			Price:      decimal.RequireFromString("25.00"),
			Source:     domain.SourceStorefrontWebhook,
			ReceivedAt: now,
		},
		{
			ID:         node.Generate(),
			OrderID:    "123",
			OccurredAt: now,
			ShopID:     "shop-1",
			ProductID:  "10",
			Quantity:   1,
			Price:      decimal.RequireFromString("9.99"),
			Source:     domain.SourceStorefrontWebhook,
			ReceivedAt: now,
		},
	}))

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(1) FROM order_products WHERE order_id = ?`, "123").Scan(&count).Error)
	assert.Equal(t, int64(2), count)

	var nullTitles int64
	require.NoError(t, db.Raw(`SELECT COUNT(1) FROM order_products WHERE title IS NULL`).Scan(&nullTitles).Error)
	assert.Equal(t, int64(1), nullTitles)
}

func TestInsertEmptySlicesAreNoOps(t *testing.T) {
	db := openTestDB(t)
	repo := testRepo()
	ctx := context.Background()

	assert.NoError(t, repo.InsertOrders(ctx, db, nil))
	assert.NoError(t, repo.InsertProducts(ctx, db, nil))
}
