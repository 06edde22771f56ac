package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"scriptdeck/internal/model"
	"scriptdeck/internal/service"
	serviceMocks "scriptdeck/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubSlideMetrics struct {
	slides int
}

func (s *stubSlideMetrics) AddSlidesGenerated(n int) { s.slides += n }

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadForm(t *testing.T) {
	app := fiber.New()
	app.Get("/", UploadForm())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), `action="/conversions"`)
	assert.Contains(t, buf.String(), `name="file"`)
}

func TestListConversions(t *testing.T) {
	mockSvc := new(serviceMocks.MockConversionService)
	app := fiber.New()
	app.Get("/conversions", ListConversions(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.ConversionListResult{
			Items: []model.Conversion{{ID: uuid.New().String(), SourceFilename: "talk.pptx"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, 10, 0).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/conversions?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.ConversionListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/conversions?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_LIMIT", body.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/conversions", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	part.Write(content)
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestCreateConversion(t *testing.T) {
	mockSvc := new(serviceMocks.MockConversionService)
	metrics := &stubSlideMetrics{}
	app := fiber.New()
	app.Post("/conversions", CreateConversion(mockSvc, metrics))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartUpload(t, "talk.pptx", []byte("fake pptx bytes"))

		expectedConv := &model.Conversion{ID: uuid.New().String(), SourceFilename: "talk.pptx", SlideCount: 4}
		mockSvc.On("Convert", mock.Anything, mock.Anything, "talk.pptx").Return(expectedConv, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/conversions", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result model.Conversion
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, expectedConv.ID, result.ID)
		assert.Equal(t, 4, metrics.slides)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/conversions", nil)
		// Missing content-type and body
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
	})

	t.Run("unsupported file", func(t *testing.T) {
		body, ct := multipartUpload(t, "notes.txt", []byte("plain text"))

		mockSvc.On("Convert", mock.Anything, mock.Anything, "notes.txt").Return(nil, service.ErrUnsupportedFile).Once()

		req := httptest.NewRequest(http.MethodPost, "/conversions", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "UNSUPPORTED_FILE", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no notes", func(t *testing.T) {
		body, ct := multipartUpload(t, "empty.pptx", []byte("fake pptx bytes"))

		mockSvc.On("Convert", mock.Anything, mock.Anything, "empty.pptx").Return(nil, service.ErrNoNotes).Once()

		req := httptest.NewRequest(http.MethodPost, "/conversions", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NO_NOTES", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		body, ct := multipartUpload(t, "talk.pptx", []byte("fake pptx bytes"))

		mockSvc.On("Convert", mock.Anything, mock.Anything, "talk.pptx").Return(nil, errors.New("convert failed")).Once()

		req := httptest.NewRequest(http.MethodPost, "/conversions", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetConversion(t *testing.T) {
	mockSvc := new(serviceMocks.MockConversionService)
	app := fiber.New()
	app.Get("/conversions/:id", GetConversion(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		expectedConv := &model.Conversion{ID: id, SourceFilename: "talk.pptx"}
		mockSvc.On("Get", mock.Anything, id).Return(expectedConv, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/conversions/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Conversion
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/conversions/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/conversions/invalid-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_ID", res.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, id).Return(nil, errors.New("db error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/conversions/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteConversion(t *testing.T) {
	mockSvc := new(serviceMocks.MockConversionService)
	app := fiber.New()
	app.Delete("/conversions/:id", DeleteConversion(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, id).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/conversions/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, id).Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/conversions/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, id).Return(errors.New("delete error")).Once()

		req := httptest.NewRequest(http.MethodDelete, "/conversions/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDownloadConversion(t *testing.T) {
	mockSvc := new(serviceMocks.MockConversionService)
	app := fiber.New()
	app.Get("/conversions/:id/download", DownloadConversion(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		content := []byte("generated deck bytes")
		mockSvc.On("Download", mock.Anything, id).Return(&service.Download{
			Content:     io.NopCloser(bytes.NewReader(content)),
			Size:        int64(len(content)),
			Filename:    service.DownloadFilename,
			ContentType: service.PptxContentType,
		}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/conversions/"+id+"/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, service.PptxContentType, resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "filename*=UTF-8''")

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, content, buf.Bytes())
		mockSvc.AssertExpectations(t)
	})

	t.Run("unknown size streams chunked", func(t *testing.T) {
		id := uuid.New().String()
		content := []byte("deck of unknown length")
		mockSvc.On("Download", mock.Anything, id).Return(&service.Download{
			Content:     io.NopCloser(bytes.NewReader(content)),
			Size:        -1,
			Filename:    service.DownloadFilename,
			ContentType: service.PptxContentType,
		}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/conversions/"+id+"/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, content, buf.Bytes())
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Download", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/conversions/"+id+"/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/conversions/not-a-uuid/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_ID", res.Error.Code)
	})
}

func TestStreamLength(t *testing.T) {
	assert.Equal(t, 9, streamLength(9))
	assert.Equal(t, 0, streamLength(0))
	// unknown sizes fall back to chunked transfer
	assert.Equal(t, -1, streamLength(-1))
}

func TestGetSourceLink(t *testing.T) {
	mockSvc := new(serviceMocks.MockConversionService)
	app := fiber.New()
	app.Get("/conversions/:id/source", GetSourceLink(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		signed := "https://minio.local/decks/" + id + ".pptx?X-Amz-Signature=abc"
		mockSvc.On("SourceLink", mock.Anything, id).Return(signed, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/conversions/"+id+"/source", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, signed, body["url"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("SourceLink", mock.Anything, id).Return("", service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/conversions/"+id+"/source", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/conversions/not-a-uuid/source", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_ID", res.Error.Code)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockConversionService)
	// Register all routes
	RegisterRoutes(app, nil, mockSvc, nil)

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		// Fiber returns 405 by default if route exists but method doesn't match
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})
}
