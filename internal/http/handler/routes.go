package handler

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"scriptdeck/internal/deck"
	"scriptdeck/internal/service"
)

// SlideMetrics records slides produced by successful conversions.
type SlideMetrics interface {
	AddSlidesGenerated(n int)
}

// HealthCheck reports whether the database dependency is reachable.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness check with no dependencies.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadForm serves the browser upload page.
func UploadForm() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Type("html").SendString(uploadFormHTML)
	}
}

const uploadFormHTML = `<!DOCTYPE html>
<html lang="ja">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>スクリプトスライド自動生成</title>
  <style>
    body { font-family: sans-serif; max-width: 40em; margin: 3em auto; }
    .drop { border: 2px dashed #999; padding: 2em; text-align: center; }
  </style>
</head>
<body>
  <h1>スクリプトスライド自動生成</h1>
  <p>ノート付きのPowerPoint（.pptx）をアップロードしてください。</p>
  <form class="drop" action="/conversions" method="post" enctype="multipart/form-data">
    <input type="file" name="file" accept=".pptx" required />
    <button type="submit">変換する</button>
  </form>
</body>
</html>`

// ListConversions returns past conversions with limit & offset paging.
func ListConversions(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limitStr := c.Query("limit", "10")
		offsetStr := c.Query("offset", "0")
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// CreateConversion accepts a multipart upload (field name: file) and runs the
// notes-to-script conversion. metrics may be nil.
func CreateConversion(svc service.ConversionService, metrics SlideMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		conv, err := svc.Convert(c.UserContext(), f, fh.Filename)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrUnsupportedFile), errors.Is(err, deck.ErrNotPresentation):
				return writeError(c, fiber.StatusBadRequest, "UNSUPPORTED_FILE", "only .pptx files are supported")
			case errors.Is(err, service.ErrNoNotes):
				return writeError(c, fiber.StatusUnprocessableEntity, "NO_NOTES", "presentation has no speaker notes")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}

		if metrics != nil {
			metrics.AddSlidesGenerated(conv.SlideCount)
		}
		return c.Status(fiber.StatusCreated).JSON(conv)
	}
}

// GetConversion returns a conversion record by ID.
func GetConversion(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		conv, err := svc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "conversion not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(conv)
	}
}

// DeleteConversion removes a conversion's record and stored artifacts.
func DeleteConversion(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "conversion not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DownloadConversion streams the generated script deck.
func DownloadConversion(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		d, err := svc.Download(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "conversion not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		// RFC 5987 encoding, the download name is Japanese.
		c.Set(fiber.HeaderContentDisposition,
			`attachment; filename="script_slides.pptx"; filename*=UTF-8''`+url.PathEscape(d.Filename))
		c.Set(fiber.HeaderContentType, d.ContentType)
		return c.SendStream(d.Content, streamLength(d.Size))
	}
}

// streamLength narrows an object size to fiber's int content length.
// Unknown sizes and sizes beyond the platform int use chunked streaming.
func streamLength(size int64) int {
	if size < 0 || size > int64(math.MaxInt) {
		return -1
	}
	return int(size)
}

// GetSourceLink returns a presigned URL for the stored source presentation.
func GetSourceLink(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		u, err := svc.SourceLink(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "conversion not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"url": u})
	}
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.ConversionService, metrics SlideMetrics) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/", UploadForm())

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/conversions", ListConversions(svc))
	app.Post("/conversions", CreateConversion(svc, metrics))
	app.Get("/conversions/:id", GetConversion(svc))
	app.Delete("/conversions/:id", DeleteConversion(svc))
	app.Get("/conversions/:id/download", DownloadConversion(svc))
	app.Get("/conversions/:id/source", GetSourceLink(svc))
}
