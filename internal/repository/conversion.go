package repository

// Package repository contains data access layer abstractions.
// Implementations can live in subpackages (e.g., postgres) inside this directory.

import (
	"context"

	"scriptdeck/internal/model"
)

// ConversionRepository defines data access for conversions using SQL queries only.
// No business logic here — strictly persistence operations.
type ConversionRepository interface {
	// Create inserts a new conversion record.
	// The caller should provide required fields (e.g., ID, CreatedAt) according to the database schema defaults.
	// Returns the stored conversion (may include values set by the DB).
	Create(ctx context.Context, conv *model.Conversion) (*model.Conversion, error)

	// FindByID returns a conversion by its ID.
	FindByID(ctx context.Context, id string) (*model.Conversion, error)

	// List returns a paginated list of conversions and total rows count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Conversion], error)

	// Delete removes a conversion by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
