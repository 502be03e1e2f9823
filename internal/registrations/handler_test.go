package registrations

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/backend/pkg/queue"
)

func newTestRouter(t *testing.T) (*gin.Engine, *fakeStore, *fakeMailer, *queue.Queue) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, store, mailer := newTestService(t)
	tasks := queue.New(0, nil)
	h := NewHandler(svc, tasks, nil)

	router := gin.New()
	router.POST("/api/v1/registrations/batch", h.RegisterBatch)
	router.GET("/api/v1/registrations/confirm/:token", h.Confirm)
	return router, store, mailer, tasks
}

func postBatch(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/registrations/batch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const validBatch = `{
	"conference_slug": "medcon-2025",
	"session_ids": ["S1", "S2"],
	"full_name": "Dana Osei",
	"email": "dana@example.com",
	"phone": "+233201234567",
	"role": "physician",
	"cme_certificate_requested": true
}`

func TestBatchEndpointCreated(t *testing.T) {
	router, store, _, tasks := newTestRouter(t)

	w := postBatch(t, router, validBatch)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Success           bool   `json:"success"`
		ConfirmationToken string `json:"confirmation_token"`
		Registrations     []struct {
			Status string `json:"status"`
			QRCode string `json:"qr_code"`
		} `json:"registrations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.ConfirmationToken, 64)
	require.Len(t, resp.Registrations, 2)
	for _, reg := range resp.Registrations {
		assert.Equal(t, "pending", reg.Status)
		assert.True(t, strings.HasPrefix(reg.QRCode, "data:image/png;base64,"))
	}

	assert.Equal(t, 2, store.len())
	// The verification email rides the queue, not the request.
	assert.Equal(t, 1, tasks.Len())
}

func TestBatchEndpointValidation(t *testing.T) {
	router, store, _, _ := newTestRouter(t)

	w := postBatch(t, router, `{"conference_slug": "medcon-2025"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, store.len())
}

func TestBatchEndpointUnknownSession(t *testing.T) {
	router, store, _, _ := newTestRouter(t)

	w := postBatch(t, router, strings.Replace(validBatch, `["S1", "S2"]`, `["nope"]`, 1))
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp struct {
		Error          string   `json:"error"`
		FailedSessions []string `json:"failed_sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"nope"}, resp.FailedSessions)
	assert.Zero(t, store.len())
}

func TestBatchEndpointOverlapConflict(t *testing.T) {
	router, store, _, _ := newTestRouter(t)

	// S3 overlaps S1 in the fixture conference.
	w := postBatch(t, router, strings.Replace(validBatch, `["S1", "S2"]`, `["S1", "S3"]`, 1))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		FailedSessions []string `json:"failed_sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.FailedSessions)
	assert.Zero(t, store.len())
}

func TestConfirmEndpointRendersHTML(t *testing.T) {
	router, store, _, _ := newTestRouter(t)

	require.Equal(t, http.StatusCreated, postBatch(t, router, validBatch).Code)
	var token string
	for _, reg := range store.rows {
		token = *reg.ConfirmationToken
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/registrations/confirm/"+token, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "confirmed")

	// The link is single-use: replaying it is an invalid token, not a resend.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req.Clone(req.Context()))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirmEndpointInvalidToken(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/registrations/confirm/"+strings.Repeat("ab", 32), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}
