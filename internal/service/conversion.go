package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"scriptdeck/internal/cache"
	"scriptdeck/internal/deck"
	"scriptdeck/internal/model"
	"scriptdeck/internal/repository"
	"scriptdeck/internal/storage"
)

var (
	ErrIDRequired      = errors.New("id is required")
	ErrNotFound        = errors.New("conversion not found")
	ErrReaderNil       = errors.New("reader is nil")
	ErrUnsupportedFile = errors.New("only .pptx files are supported")
	ErrNoNotes         = errors.New("presentation has no speaker notes")
)

// PptxContentType is the MIME type for PresentationML packages.
const PptxContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// DownloadFilename is the fixed name the generated deck downloads as.
const DownloadFilename = "スクリプトスライド_自動生成.pptx"

// SourceLinkTTL bounds how long a presigned source-deck URL stays valid.
const SourceLinkTTL = 15 * time.Minute

// ConversionListResult is the service-level DTO for paginated conversions.
type ConversionListResult struct {
	Items []model.Conversion `json:"data"`
	Total int                `json:"total"`
}

// Download carries a generated deck ready to stream to the client.
type Download struct {
	Content     io.ReadCloser
	Size        int64
	Filename    string
	ContentType string
}

// ConversionService defines the use cases for converting presentations.
type ConversionService interface {
	// Convert reads an uploaded .pptx, weaves its speaker notes into a
	// script deck, stores both artifacts in object storage and records
	// metadata. Storage writes are rolled back if the DB save fails.
	Convert(ctx context.Context, r io.Reader, originalFilename string) (*model.Conversion, error)

	// List returns conversions using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*ConversionListResult, error)

	// Get returns a single conversion by its ID.
	Get(ctx context.Context, id string) (*model.Conversion, error)

	// Delete removes a conversion's artifacts and its record.
	Delete(ctx context.Context, id string) error

	// Download streams the generated script deck for a conversion.
	Download(ctx context.Context, id string) (*Download, error)

	// SourceLink returns a time-limited URL for the stored source deck.
	SourceLink(ctx context.Context, id string) (string, error)
}

// conversionService is a concrete implementation of ConversionService.
type conversionService struct {
	store   storage.Storage
	repo    repository.ConversionRepository
	cache   cache.ConversionCache // nil disables caching
	palette deck.Palette
}

// NewConversionService constructs a new ConversionService. cc may be nil.
func NewConversionService(store storage.Storage, repo repository.ConversionRepository, cc cache.ConversionCache, palette deck.Palette) ConversionService {
	return &conversionService{store: store, repo: repo, cache: cc, palette: palette}
}

func (s *conversionService) Convert(ctx context.Context, r io.Reader, originalFilename string) (*model.Conversion, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if !strings.EqualFold(filepath.Ext(originalFilename), ".pptx") {
		return nil, ErrUnsupportedFile
	}

	// The zip reader needs random access, so the upload is buffered. Decks
	// of speaker notes are small.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	notes, err := deck.HarvestNotes(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	woven := deck.Weave(notes, s.palette)
	if len(woven.Slides) == 0 {
		return nil, ErrNoNotes
	}

	var out bytes.Buffer
	if err := deck.WriteDeck(&out, woven.Slides); err != nil {
		return nil, fmt.Errorf("write deck: %w", err)
	}

	id := uuid.New().String()
	sourceKey := "sources/" + id + ".pptx"
	outputKey := "decks/" + id + ".pptx"

	// Store the original upload first so a conversion can be re-run later.
	if _, err := s.store.Put(ctx, sourceKey, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: PptxContentType,
		Metadata: map[string]string{
			"original-filename": originalFilename,
		},
	}); err != nil {
		return nil, fmt.Errorf("store source: %w", err)
	}

	if _, err := s.store.Put(ctx, outputKey, bytes.NewReader(out.Bytes()), storage.PutObjectOptions{
		Size:        int64(out.Len()),
		ContentType: PptxContentType,
	}); err != nil {
		// Rollback: drop the stored source
		if delErr := s.store.Delete(ctx, sourceKey); delErr != nil {
			return nil, fmt.Errorf("store deck failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("store deck: %w", err)
	}

	conv := &model.Conversion{
		ID:             id,
		SourceFilename: originalFilename,
		SourcePath:     sourceKey,
		OutputPath:     outputKey,
		SourceSize:     int64(len(data)),
		NoteCount:      woven.NoteCount,
		SlideCount:     len(woven.Slides),
		Speakers:       woven.Speakers,
		CreatedAt:      time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, conv)
	if err != nil {
		// Rollback: delete both objects from storage
		delErr := errors.Join(s.store.Delete(ctx, outputKey), s.store.Delete(ctx, sourceKey))
		if delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

// List returns paginated conversions without exposing repository types.
func (s *conversionService) List(ctx context.Context, limit, offset int) (*ConversionListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &ConversionListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a conversion by ID, consulting the cache first.
func (s *conversionService) Get(ctx context.Context, id string) (*model.Conversion, error) {
	if id == "" {
		return nil, ErrIDRequired
	}

	if s.cache != nil {
		// Cache failures are not fatal; fall through to the repository.
		if cached, err := s.cache.Get(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}

	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, conv)
	}
	return conv, nil
}

// Delete removes both stored artifacts, then the record, then the cache entry.
func (s *conversionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	// Delete from storage first; if this fails, keep the DB row so the
	// objects stay reachable.
	if err := s.store.Delete(ctx, conv.OutputPath); err != nil {
		return fmt.Errorf("delete deck: %w", err)
	}
	if err := s.store.Delete(ctx, conv.SourcePath); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, id)
	}
	return nil
}

// Download streams the generated deck for a conversion.
func (s *conversionService) Download(ctx context.Context, id string) (*Download, error) {
	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rc, info, err := s.store.Get(ctx, conv.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("fetch deck: %w", err)
	}
	return &Download{
		Content:     rc,
		Size:        info.Size,
		Filename:    DownloadFilename,
		ContentType: PptxContentType,
	}, nil
}

// SourceLink presigns the original upload so it can be fetched directly from
// object storage, e.g. to re-run a conversion with a different palette.
func (s *conversionService) SourceLink(ctx context.Context, id string) (string, error) {
	conv, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	u, err := s.store.PresignGet(ctx, conv.SourcePath, SourceLinkTTL)
	if err != nil {
		return "", fmt.Errorf("presign source: %w", err)
	}
	return u, nil
}
