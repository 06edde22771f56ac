package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"scriptdeck/internal/model"
	"scriptdeck/internal/repository"
)

// ConversionPostgres is a PostgreSQL implementation of repository.ConversionRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type ConversionPostgres struct {
	db *sql.DB
}

// NewConversionPostgres creates a new ConversionPostgres repository.
func NewConversionPostgres(db *sql.DB) *ConversionPostgres {
	return &ConversionPostgres{db: db}
}

var _ repository.ConversionRepository = (*ConversionPostgres)(nil)

// Speakers are kept as a JSONB array so the list survives round-trips
// without a separate table.
func encodeSpeakers(names []string) ([]byte, error) {
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// Create inserts a new conversion row and returns the stored record.
func (r *ConversionPostgres) Create(ctx context.Context, conv *model.Conversion) (*model.Conversion, error) {
	const q = `
		INSERT INTO conversions (id, source_filename, source_path, output_path, source_size, note_count, slide_count, speakers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, source_filename, source_path, output_path, source_size, note_count, slide_count, speakers, created_at
	`
	speakers, err := encodeSpeakers(conv.Speakers)
	if err != nil {
		return nil, fmt.Errorf("encode speakers: %w", err)
	}
	row := r.db.QueryRowContext(ctx, q,
		conv.ID,
		conv.SourceFilename,
		conv.SourcePath,
		conv.OutputPath,
		conv.SourceSize,
		conv.NoteCount,
		conv.SlideCount,
		speakers,
		conv.CreatedAt,
	)
	return scanConversion(row)
}

// FindByID fetches a single conversion by its ID.
func (r *ConversionPostgres) FindByID(ctx context.Context, id string) (*model.Conversion, error) {
	const q = `
		SELECT id, source_filename, source_path, output_path, source_size, note_count, slide_count, speakers, created_at
		FROM conversions
		WHERE id = $1
	`
	return scanConversion(r.db.QueryRowContext(ctx, q, id))
}

// List returns conversions using LIMIT/OFFSET pagination and a total count.
func (r *ConversionPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Conversion], error) {
	// Count total rows
	const qCount = `SELECT COUNT(*) FROM conversions`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	// Fetch page
	const qList = `
		SELECT id, source_filename, source_path, output_path, source_size, note_count, slide_count, speakers, created_at
		FROM conversions
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Conversion, 0)
	for rows.Next() {
		var (
			c        model.Conversion
			speakers []byte
		)
		if err := rows.Scan(
			&c.ID,
			&c.SourceFilename,
			&c.SourcePath,
			&c.OutputPath,
			&c.SourceSize,
			&c.NoteCount,
			&c.SlideCount,
			&speakers,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(speakers, &c.Speakers); err != nil {
			return nil, fmt.Errorf("decode speakers: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Conversion]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a conversion by ID. It does not return an error if the row does not exist.
func (r *ConversionPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM conversions WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	// Ignore rows affected: deleting a missing row is not an error here.
	_, _ = res.RowsAffected()
	return nil
}

func scanConversion(row *sql.Row) (*model.Conversion, error) {
	var (
		c        model.Conversion
		speakers []byte
	)
	if err := row.Scan(
		&c.ID,
		&c.SourceFilename,
		&c.SourcePath,
		&c.OutputPath,
		&c.SourceSize,
		&c.NoteCount,
		&c.SlideCount,
		&speakers,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(speakers, &c.Speakers); err != nil {
		return nil, fmt.Errorf("decode speakers: %w", err)
	}
	return &c, nil
}
