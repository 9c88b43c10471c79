package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/orderlake/internal/clock"
	"github.com/smallbiznis/orderlake/internal/ingest/domain"
)

const defaultCurrency = "USD"

// shopExtractor is one step of the shop-id fallback chain. Extractors
// run in declaration order; the first non-empty result wins.
type shopExtractor struct {
	field   string
	extract func(ev domain.OrderEvent) string
}

var shopExtractors = []shopExtractor{
	{"location_id", func(ev domain.OrderEvent) string { return coerceID(ev.LocationID) }},
	{"source_name", func(ev domain.OrderEvent) string { return strings.TrimSpace(ev.SourceName) }},
}

// Normalizer flattens raw storefront order events into warehouse rows.
type Normalizer struct {
	node  *snowflake.Node
	clock clock.Clock
}

func New(node *snowflake.Node, clk clock.Clock) *Normalizer {
	return &Normalizer{node: node, clock: clk}
}

// Normalize parses payload and produces one order row plus one product
// row per line item. All rows of a delivery share the same occurred_at
// and received_at so the two tables stay joinable on time.
func (n *Normalizer) Normalize(payload []byte) (domain.OrderRow, []domain.ProductRow, error) {
	var ev domain.OrderEvent

	// UseNumber keeps large numeric ids intact; float64 would round
	// them past 2^53.
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&ev); err != nil {
		return domain.OrderRow{}, nil, fmt.Errorf("%w: malformed json: %v", domain.ErrInvalidPayload, err)
	}

	orderID := coerceID(ev.ID)
	if orderID == "" {
		return domain.OrderRow{}, nil, fmt.Errorf("%w: missing order id", domain.ErrInvalidPayload)
	}
	if ev.LineItems == nil {
		return domain.OrderRow{}, nil, fmt.Errorf("%w: missing line_items", domain.ErrInvalidPayload)
	}

	receivedAt := n.clock.Now()
	occurredAt := receivedAt
	if ev.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, ev.CreatedAt); err == nil {
			occurredAt = ts.UTC()
		}
	}

	shopID := domain.FallbackShopID
	for _, ex := range shopExtractors {
		if v := ex.extract(ev); v != "" {
			shopID = v
			break
		}
	}

	currency := strings.TrimSpace(ev.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	order := domain.OrderRow{
		ID:             n.node.Generate(),
		OrderID:        orderID,
		OccurredAt:     occurredAt,
		ShopID:         shopID,
		TotalPrice:     coerceDecimal(ev.TotalPrice),
		TotalDiscounts: coerceDecimal(ev.TotalDiscounts),
		Currency:       currency,
		Source:         domain.SourceStorefrontWebhook,
		ReceivedAt:     receivedAt,
	}

	products := make([]domain.ProductRow, 0, len(*ev.LineItems))
	for _, item := range *ev.LineItems {
		products = append(products, domain.ProductRow{
			ID:           n.node.Generate(),
			OrderID:      orderID,
			OccurredAt:   occurredAt,
			ShopID:       shopID,
			ProductID:    coerceID(item.ProductID),
			Title:        item.Title,
			VariantID:    coerceOptionalID(item.VariantID),
			VariantTitle: item.VariantTitle,
			Vendor:       item.Vendor,
			Quantity:     coerceCount(item.Quantity),
			Price:        coerceDecimal(item.Price),
			Discount:     coerceDecimal(item.TotalDiscount),
			Currency:     currency,
			Source:       domain.SourceStorefrontWebhook,
			ReceivedAt:   receivedAt,
		})
	}

	return order, products, nil
}

// coerceID renders an identifier that may arrive as a JSON number or a
// string. Missing and unusable values become "".
func coerceID(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

func coerceOptionalID(v any) *string {
	id := coerceID(v)
	if id == "" {
		return nil
	}
	return &id
}

// coerceDecimal parses a money amount that may arrive as a string or a
// JSON number. Missing, empty, and unparseable values become zero.
func coerceDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero
		}
		return d
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// coerceCount parses a quantity that may arrive as a number or a
// numeric string. Missing and unusable values become zero.
func coerceCount(v any) int64 {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return int64(f)
		}
		return 0
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return 0
		}
		return d.IntPart()
	default:
		return 0
	}
}
