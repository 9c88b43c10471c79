package domain

import (
	"context"
	"errors"
)

// Result summarizes one processed webhook delivery.
type Result struct {
	OrderID      string `json:"order_id"`
	ProductCount int    `json:"product_count"`
	Duplicate    bool   `json:"duplicate"`
}

// Service runs the full ingest pipeline for a raw webhook delivery:
// signature verification, normalization, duplicate check, warehouse write.
type Service interface {
	IngestOrder(ctx context.Context, payload []byte, signature string) (Result, error)
}

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrAlreadyProcessed = errors.New("order_already_processed")
	ErrWriteFailed      = errors.New("warehouse_write_failed")
)
