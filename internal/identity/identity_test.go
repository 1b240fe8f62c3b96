package identity

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, frame string) ([]float64, error) {
	args := m.Called(ctx, frame)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

func TestPgVectorMatcher_Resolve(t *testing.T) {
	embedding := make([]float64, 512)
	embedding[0] = 0.5

	t.Run("match above threshold", func(t *testing.T) {
		db, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer db.Close()

		employeeID := uuid.New()
		db.ExpectQuery(`SELECT e.id, e.full_name, 1 - \(fe.embedding <=> \$1\) AS similarity`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "full_name", "similarity"}).
				AddRow(employeeID, "Maria Silva", 0.94))

		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, "frame").Return(embedding, nil)

		matcher := NewPgVectorMatcher(db, embedder, 0.6)
		match, err := matcher.Resolve(context.Background(), "frame")
		require.NoError(t, err)

		assert.Equal(t, employeeID, match.EmployeeID)
		assert.Equal(t, "Maria Silva", match.EmployeeName)
		assert.Equal(t, 0.94, match.Confidence)
	})

	t.Run("below threshold is not found", func(t *testing.T) {
		db, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer db.Close()

		db.ExpectQuery(`SELECT e.id, e.full_name`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "full_name", "similarity"}).
				AddRow(uuid.New(), "Someone Else", 0.41))

		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, mock.Anything).Return(embedding, nil)

		matcher := NewPgVectorMatcher(db, embedder, 0.6)
		_, err = matcher.Resolve(context.Background(), "frame")
		assert.ErrorIs(t, err, domain.ErrEmployeeNotFound)
	})

	t.Run("empty database is not found", func(t *testing.T) {
		db, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer db.Close()

		db.ExpectQuery(`SELECT e.id, e.full_name`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "full_name", "similarity"}))

		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, mock.Anything).Return(embedding, nil)

		matcher := NewPgVectorMatcher(db, embedder, 0.6)
		_, err = matcher.Resolve(context.Background(), "frame")
		assert.ErrorIs(t, err, domain.ErrEmployeeNotFound)
	})

	t.Run("embedder errors pass through", func(t *testing.T) {
		db, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer db.Close()

		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, domain.ErrNoFaceDetected)

		matcher := NewPgVectorMatcher(db, embedder, 0.6)
		_, err = matcher.Resolve(context.Background(), "frame")
		assert.ErrorIs(t, err, domain.ErrNoFaceDetected)
	})

	t.Run("database error", func(t *testing.T) {
		db, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer db.Close()

		db.ExpectQuery(`SELECT e.id, e.full_name`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		embedder := new(MockEmbedder)
		embedder.On("Embed", mock.Anything, mock.Anything).Return(embedding, nil)

		matcher := NewPgVectorMatcher(db, embedder, 0.6)
		_, err = matcher.Resolve(context.Background(), "frame")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "match embedding")
	})
}

// framePNG builds a base64 PNG of the given size for geometry checks.
func framePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func embedServer(t *testing.T, results []representResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/represent", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req representRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Img)

		_ = json.NewEncoder(w).Encode(representResponse{Results: results})
	}))
}

func clientFor(srv *httptest.Server) *Client {
	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	return NewClient(cfg)
}

func TestClient_Embed(t *testing.T) {
	ctx := context.Background()
	embedding := make([]float64, 512)
	embedding[3] = 0.7

	t.Run("single centered face", func(t *testing.T) {
		// 640x480 frame with a 200x200 face centered on it.
		srv := embedServer(t, []representResult{{
			Embedding:  embedding,
			FacialArea: facialArea{X: 220, Y: 140, W: 200, H: 200},
		}})
		defer srv.Close()

		got, err := clientFor(srv).Embed(ctx, framePNG(t, 640, 480))
		require.NoError(t, err)
		assert.Equal(t, embedding, got)
	})

	t.Run("no face", func(t *testing.T) {
		srv := embedServer(t, nil)
		defer srv.Close()

		_, err := clientFor(srv).Embed(ctx, framePNG(t, 640, 480))
		assert.ErrorIs(t, err, domain.ErrNoFaceDetected)
	})

	t.Run("multiple faces", func(t *testing.T) {
		srv := embedServer(t, []representResult{
			{Embedding: embedding, FacialArea: facialArea{W: 200, H: 200}},
			{Embedding: embedding, FacialArea: facialArea{W: 180, H: 180}},
		})
		defer srv.Close()

		_, err := clientFor(srv).Embed(ctx, framePNG(t, 640, 480))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMultipleFaces)

		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Contains(t, appErr.Message, "(2)")
	})

	t.Run("face too small", func(t *testing.T) {
		srv := embedServer(t, []representResult{{
			Embedding:  embedding,
			FacialArea: facialArea{X: 300, Y: 220, W: 40, H: 40},
		}})
		defer srv.Close()

		_, err := clientFor(srv).Embed(ctx, framePNG(t, 640, 480))
		assert.ErrorIs(t, err, domain.ErrFaceTooSmall)
	})

	t.Run("face off-center", func(t *testing.T) {
		// Face tucked into the top-left corner of a 640x480 frame.
		srv := embedServer(t, []representResult{{
			Embedding:  embedding,
			FacialArea: facialArea{X: 0, Y: 0, W: 120, H: 120},
		}})
		defer srv.Close()

		_, err := clientFor(srv).Embed(ctx, framePNG(t, 640, 480))
		assert.ErrorIs(t, err, domain.ErrFaceNotCentered)
	})

	t.Run("empty embedding", func(t *testing.T) {
		srv := embedServer(t, []representResult{{
			FacialArea: facialArea{X: 220, Y: 140, W: 200, H: 200},
		}})
		defer srv.Close()

		_, err := clientFor(srv).Embed(ctx, framePNG(t, 640, 480))
		assert.ErrorIs(t, err, domain.ErrEncodingFailed)
	})

	t.Run("service error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := clientFor(srv).Embed(ctx, framePNG(t, 640, 480))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})
}
