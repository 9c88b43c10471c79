package domain

// OrderEvent is the raw storefront webhook payload. Numeric fields
// arrive as either JSON numbers or strings depending on the sender, so
// they are held loosely here and coerced during normalization. The
// line_items pointer distinguishes an absent key from an empty list.
type OrderEvent struct {
	ID             any         `json:"id"`
	CreatedAt      string      `json:"created_at"`
	Currency       string      `json:"currency"`
	LocationID     any         `json:"location_id"`
	SourceName     string      `json:"source_name"`
	TotalPrice     any         `json:"total_price"`
	TotalDiscounts any         `json:"total_discounts"`
	LineItems      *[]LineItem `json:"line_items"`
}

// LineItem is one raw order line as delivered by the storefront.
type LineItem struct {
	ProductID     any     `json:"product_id"`
	Title         *string `json:"title"`
	VariantID     any     `json:"variant_id"`
	VariantTitle  *string `json:"variant_title"`
	Quantity      any     `json:"quantity"`
	Price         any     `json:"price"`
	TotalDiscount any     `json:"total_discount"`
	Vendor        *string `json:"vendor"`
}
