package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/orderlake/internal/clock"
	"github.com/smallbiznis/orderlake/internal/ingest/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer(t *testing.T, now time.Time) *Normalizer {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(node, clock.NewFakeClock(now))
}

func TestNormalizeFlattensOrderAndLineItems(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := newTestNormalizer(t, now)

	payload := []byte(`{
		"id": 123,
		"total_price": "50.00",
		"line_items": [
			{"product_id": 9, "title": "Widget", "quantity": 2, "price": "25.00"}
		]
	}`)

	order, products, err := n.Normalize(payload)
	require.NoError(t, err)

	assert.Equal(t, "123", order.OrderID)
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, order.TotalDiscounts.IsZero())
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, domain.FallbackShopID, order.ShopID)
	assert.Equal(t, domain.SourceStorefrontWebhook, order.Source)
	assert.Equal(t, now, order.ReceivedAt)
	assert.Equal(t, now, order.OccurredAt)

	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "123", p.OrderID)
	assert.Equal(t, "9", p.ProductID)
	require.NotNil(t, p.Title)
	assert.Equal(t, "Widget", *p.Title)
	assert.Equal(t, int64(2), p.Quantity)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, p.Discount.IsZero())
	assert.Equal(t, "USD", p.Currency)
	assert.Nil(t, p.VariantID)
	assert.Nil(t, p.Vendor)
}

func TestNormalizeSharesTimestampsAcrossRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := newTestNormalizer(t, now)

	payload := []byte(`{
		"id": "A1",
		"created_at": "2026-02-28T09:30:00Z",
		"line_items": [{"product_id": 1}, {"product_id": 2}]
	}`)

	order, products, err := n.Normalize(payload)
	require.NoError(t, err)

	wantOccurred := time.Date(2026, 2, 28, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, wantOccurred, order.OccurredAt)
	for _, p := range products {
		assert.Equal(t, order.OccurredAt, p.OccurredAt)
		assert.Equal(t, order.ReceivedAt, p.ReceivedAt)
		assert.Equal(t, order.ShopID, p.ShopID)
	}
}

func TestNormalizeFallsBackToReceiptTimeOnBadCreatedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := newTestNormalizer(t, now)

	payload := []byte(`{"id": 1, "created_at": "yesterday", "line_items": []}`)
	order, _, err := n.Normalize(payload)
	require.NoError(t, err)
	assert.Equal(t, now, order.OccurredAt)
}

func TestNormalizeShopIDFallbackChain(t *testing.T) {
	now := time.Now().UTC()
	n := newTestNormalizer(t, now)

	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "location id wins",
			payload: `{"id": 1, "location_id": 777, "source_name": "web", "line_items": []}`,
			want:    "777",
		},
		{
			name:    "source name when location id absent",
			payload: `{"id": 1, "source_name": "web", "line_items": []}`,
			want:    "web",
		},
		{
			name:    "sentinel when neither present",
			payload: `{"id": 1, "line_items": []}`,
			want:    domain.FallbackShopID,
		},
		{
			name:    "empty string location id skipped",
			payload: `{"id": 1, "location_id": "", "source_name": "pos", "line_items": []}`,
			want:    "pos",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order, _, err := n.Normalize([]byte(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.want, order.ShopID)
		})
	}
}

func TestNormalizeCoercions(t *testing.T) {
	now := time.Now().UTC()
	n := newTestNormalizer(t, now)

	payload := []byte(`{
		"id": 1,
		"total_price": 19.99,
		"total_discounts": "not-a-number",
		"line_items": [
			{"product_id": "SKU-1", "quantity": "3", "price": 5, "total_discount": ""},
			{"product_id": 2, "variant_id": 42, "quantity": 1.0, "price": "oops"}
		]
	}`)

	order, products, err := n.Normalize(payload)
	require.NoError(t, err)

	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("19.99")))
	assert.True(t, order.TotalDiscounts.IsZero())

	require.Len(t, products, 2)
	assert.Equal(t, "SKU-1", products[0].ProductID)
	assert.Equal(t, int64(3), products[0].Quantity)
	assert.True(t, products[0].Price.Equal(decimal.NewFromInt(5)))
	assert.True(t, products[0].Discount.IsZero())

	require.NotNil(t, products[1].VariantID)
	assert.Equal(t, "42", *products[1].VariantID)
	assert.Equal(t, int64(1), products[1].Quantity)
	assert.True(t, products[1].Price.IsZero())
}

func TestNormalizeLargeNumericOrderIDKeepsPrecision(t *testing.T) {
	n := newTestNormalizer(t, time.Now().UTC())

	order, _, err := n.Normalize([]byte(`{"id": 9007199254740993, "line_items": []}`))
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", order.OrderID)
}

func TestNormalizeNumberAndStringIDsAreEquivalent(t *testing.T) {
	n := newTestNormalizer(t, time.Now().UTC())

	fromNumber, _, err := n.Normalize([]byte(`{"id": 123, "line_items": []}`))
	require.NoError(t, err)
	fromString, _, err := n.Normalize([]byte(`{"id": "123", "line_items": []}`))
	require.NoError(t, err)
	assert.Equal(t, fromNumber.OrderID, fromString.OrderID)
}

func TestNormalizeRejectsInvalidPayloads(t *testing.T) {
	n := newTestNormalizer(t, time.Now().UTC())

	cases := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"id": `},
		{"missing id", `{"line_items": []}`},
		{"empty string id", `{"id": "", "line_items": []}`},
		{"missing line_items", `{"id": 1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := n.Normalize([]byte(tc.payload))
			assert.True(t, errors.Is(err, domain.ErrInvalidPayload), "got %v", err)
		})
	}
}

func TestNormalizeAcceptsEmptyLineItems(t *testing.T) {
	n := newTestNormalizer(t, time.Now().UTC())

	order, products, err := n.Normalize([]byte(`{"id": 1, "line_items": []}`))
	require.NoError(t, err)
	assert.Equal(t, "1", order.OrderID)
	assert.Empty(t, products)
}

func TestNormalizePreservesProvidedEmptyTitle(t *testing.T) {
	n := newTestNormalizer(t, time.Now().UTC())

	_, products, err := n.Normalize([]byte(`{
		"id": 1,
		"line_items": [{"product_id": 1, "title": ""}, {"product_id": 2}]
	}`))
	require.NoError(t, err)
	require.Len(t, products, 2)

	require.NotNil(t, products[0].Title)
	assert.Equal(t, "", *products[0].Title)
	assert.Nil(t, products[1].Title)
}
