package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SourceStorefrontWebhook tags every warehouse row written by the
// webhook ingest path so downstream consumers can tell provenance apart.
const SourceStorefrontWebhook = "storefront_webhook"

// FallbackShopID is written when the payload carries no usable shop
// identifier at all.
const FallbackShopID = "UNKNOWN"

// OrderRow is the flattened order-level warehouse record. One row per
// accepted webhook delivery.
type OrderRow struct {
	ID             snowflake.ID    `json:"id"`
	OrderID        string          `json:"order_id"`
	OccurredAt     time.Time       `json:"occurred_at"`
	ShopID         string          `json:"shop_id"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	TotalDiscounts decimal.Decimal `json:"total_discounts"`
	Currency       string          `json:"currency"`
	Source         string          `json:"source"`
	ReceivedAt     time.Time       `json:"received_at"`
}

// ProductRow is one line item of an order, denormalized with the parent
// order's identifiers so each table is independently queryable.
type ProductRow struct {
	ID           snowflake.ID    `json:"id"`
	OrderID      string          `json:"order_id"`
	OccurredAt   time.Time       `json:"occurred_at"`
	ShopID       string          `json:"shop_id"`
	ProductID    string          `json:"product_id"`
	Title        *string         `json:"title"`
	VariantID    *string         `json:"variant_id"`
	VariantTitle *string         `json:"variant_title"`
	Vendor       *string         `json:"vendor"`
	Quantity     int64           `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Discount     decimal.Decimal `json:"discount"`
	Currency     string          `json:"currency"`
	Source       string          `json:"source"`
	ReceivedAt   time.Time       `json:"received_at"`
}
