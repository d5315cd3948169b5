package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name: "from context",
			setup: func(c *gin.Context) {
				c.Set(logger.GinRequestIDKey, "ctx-request-id")
			},
			expectedID: "ctx-request-id",
		},
		{
			name: "from header when context empty",
			setup: func(c *gin.Context) {
				c.Request.Header.Set("X-Request-ID", "header-request-id")
			},
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext()
			tt.setup(c)
			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestBaseHandler_Success(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext()

	h.Success(c, gin.H{"ok": true})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestBaseHandler_CreatedAndNoContent(t *testing.T) {
	h := &BaseHandler{}

	c, w := newTestContext()
	h.Created(c, gin.H{"id": 1})
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = newTestContext()
	h.NoContent(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		soft       bool
	}{
		{
			name:       "transient backend failure",
			err:        cart.NewBackendError("read", true, errors.New("dial tcp: connection refused")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   dto.ErrCodeBackendUnavailable,
		},
		{
			name:       "fatal backend failure",
			err:        cart.NewBackendError("read", false, errors.New("WRONGTYPE")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   dto.ErrCodeInternal,
		},
		{
			name:       "wrapped backend failure",
			err:        fmt.Errorf("add: %w", cart.NewBackendError("add", true, errors.New("timeout"))),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   dto.ErrCodeBackendUnavailable,
		},
		{
			name:       "invalid item id",
			err:        cart.ErrInvalidItemID,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeInvalidItemID,
		},
		{
			name:       "invalid quantity",
			err:        cart.ErrInvalidQuantity,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeInvalidQuantity,
		},
		{
			name:       "missing line is soft",
			err:        cart.ErrLineNotFound,
			wantStatus: http.StatusOK,
			wantCode:   dto.ErrCodeNotFound,
			soft:       true,
		},
		{
			name:       "unresolved backend",
			err:        cart.ErrNoBackend,
			wantStatus: http.StatusInternalServerError,
			wantCode:   dto.ErrCodeNoBackend,
		},
		{
			name:       "generic domain error",
			err:        shared.ErrInvalidInput,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeInvalidInput,
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   dto.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			c, w := newTestContext()

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			if tt.soft {
				assert.True(t, resp.Success)
				require.NotNil(t, resp.SoftError)
				assert.Equal(t, tt.wantCode, resp.SoftError.Code)
				return
			}
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestBaseHandler_HandleError_Nil(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext()

	h.HandleError(c, nil)

	assert.Empty(t, w.Body.String())
}
