package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mediafeed/mediafeed-go/internal/db/models"
	"github.com/mediafeed/mediafeed-go/internal/middleware"
	"github.com/mediafeed/mediafeed-go/internal/queue"
	"github.com/mediafeed/mediafeed-go/internal/service"
)

var alice = &models.User{ID: uuid.New(), Username: "alice"}

// newEngine routes method+path to h with viewer set beforehand.
func newEngine(viewer *models.User, method, path string, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(method, path, func(c *gin.Context) {
		if viewer != nil {
			middleware.SetViewer(c, viewer)
		}
		c.Next()
	}, h)
	return r
}

func do(r *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		{service.ErrNotFound, http.StatusNotFound, "not found"},
		{fmt.Errorf("wrapped: %w", service.ErrNotFound), http.StatusNotFound, "not found"},
		{service.ErrChannelNotFound, http.StatusNotFound, "channel not found"},
		{fmt.Errorf("%w: %q", service.ErrUnresolvableChannelURL, "x"), http.StatusBadRequest, ""},
		{service.ErrInvalidCategoryTitle, http.StatusBadRequest, ""},
		{service.ErrCategoryConflict, http.StatusConflict, ""},
		{service.ErrChannelTitleUnavailable, http.StatusUnprocessableEntity, ""},
		{service.ErrFeedUnreachable, http.StatusBadGateway, ""},
		{service.ErrMalformedFeed, http.StatusBadGateway, ""},
		{errors.New("boom"), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			r := newEngine(nil, http.MethodGet, "/x", func(c *gin.Context) { handleServiceError(c, tt.err) })
			w := do(r, http.MethodGet, "/x", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "/x", resp.Path)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Message)
			}
		})
	}
}

type mockChannelManager struct {
	mock.Mock
}

func (m *mockChannelManager) AddChannel(ctx context.Context, owner *models.User, req service.AddChannelRequest) (*service.AddChannelResult, error) {
	args := m.Called(ctx, owner, req)
	if r := args.Get(0); r != nil {
		return r.(*service.AddChannelResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockChannelManager) DeleteChannel(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func TestChannelHandler_Add(t *testing.T) {
	channel := models.NewChannel("Arduino", "https://www.youtube.com/channel/UCabc",
		"https://www.youtube.com/feeds/videos.xml?channel_id=UCabc")
	catID := uuid.New()

	t.Run("new channel", func(t *testing.T) {
		mgr := new(mockChannelManager)
		mgr.On("AddChannel", mock.Anything, alice, service.AddChannelRequest{
			URL: "https://www.youtube.com/channel/UCabc", CategoryID: &catID,
		}).Return(&service.AddChannelResult{
			Channel: channel,
			Created: []*models.Video{{VideoID: "a"}, {VideoID: "b"}},
			SyncErr: service.ErrMalformedFeed,
		}, nil)

		r := newEngine(alice, http.MethodPost, "/channels", NewChannelHandler(mgr).Add)
		w := do(r, http.MethodPost, "/channels", map[string]any{
			"url":         "https://www.youtube.com/channel/UCabc",
			"category_id": catID.String(),
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decode[AddChannelResponse](t, w)
		assert.Equal(t, channel.ID, resp.Channel.ID)
		assert.False(t, resp.Existing)
		assert.Equal(t, 2, resp.CreatedVideos)
		assert.Equal(t, service.ErrMalformedFeed.Error(), resp.SyncError)
	})

	t.Run("existing channel", func(t *testing.T) {
		mgr := new(mockChannelManager)
		mgr.On("AddChannel", mock.Anything, alice, mock.Anything).
			Return(&service.AddChannelResult{Channel: channel, Existing: true}, nil)

		r := newEngine(alice, http.MethodPost, "/channels", NewChannelHandler(mgr).Add)
		w := do(r, http.MethodPost, "/channels", map[string]any{"url": "youtube.com/channel/UCabc"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[AddChannelResponse](t, w).Existing)
	})

	t.Run("missing url", func(t *testing.T) {
		mgr := new(mockChannelManager)
		r := newEngine(alice, http.MethodPost, "/channels", NewChannelHandler(mgr).Add)
		w := do(r, http.MethodPost, "/channels", map[string]any{"title": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		mgr.AssertNotCalled(t, "AddChannel", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unresolvable url", func(t *testing.T) {
		mgr := new(mockChannelManager)
		mgr.On("AddChannel", mock.Anything, alice, mock.Anything).
			Return(nil, fmt.Errorf("%w: %q", service.ErrUnresolvableChannelURL, "https://vimeo.com/x"))

		r := newEngine(alice, http.MethodPost, "/channels", NewChannelHandler(mgr).Add)
		w := do(r, http.MethodPost, "/channels", map[string]any{"url": "https://vimeo.com/x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestChannelHandler_Delete(t *testing.T) {
	id := uuid.New()
	mgr := new(mockChannelManager)
	mgr.On("DeleteChannel", mock.Anything, id).Return(nil)
	mgr.On("DeleteChannel", mock.Anything, mock.Anything).Return(service.ErrChannelNotFound)

	r := newEngine(alice, http.MethodDelete, "/channels/:id", NewChannelHandler(mgr).Delete)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/channels/"+id.String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/channels/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodDelete, "/channels/not-a-uuid", nil).Code)
}

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) SyncByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*service.SyncResult, error) {
	args := m.Called(ctx, ids)
	if r := args.Get(0); r != nil {
		return r.(map[uuid.UUID]*service.SyncResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueSync(ctx context.Context, channelID uuid.UUID) (string, error) {
	args := m.Called(ctx, channelID)
	return args.String(0), args.Error(1)
}

type stubChannelLister []*models.Channel

func (s stubChannelLister) List(ctx context.Context) ([]*models.Channel, error) {
	return s, nil
}

func TestSyncHandler_Inline(t *testing.T) {
	ok, bad := uuid.New(), uuid.New()
	syncer := new(mockSyncer)
	syncer.On("SyncByIDs", mock.Anything, []uuid.UUID(nil)).Return(map[uuid.UUID]*service.SyncResult{
		ok:  {ChannelID: ok, Created: []*models.Video{{VideoID: "v"}}},
		bad: {ChannelID: bad, Err: service.ErrFeedUnreachable},
	}, nil)

	r := newEngine(alice, http.MethodPost, "/sync", NewSyncHandler(syncer, nil, nil).Sync)
	w := do(r, http.MethodPost, "/sync", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Results []SyncResultResponse `json:"results"`
	}](t, w)
	require.Len(t, resp.Results, 2)
	byID := map[uuid.UUID]SyncResultResponse{}
	for _, r := range resp.Results {
		byID[r.ChannelID] = r
	}
	assert.Equal(t, SyncStatusOK, byID[ok].Status)
	assert.Equal(t, 1, byID[ok].CreatedVideos)
	assert.Equal(t, SyncStatusFailed, byID[bad].Status)
	assert.Equal(t, service.ErrFeedUnreachable.Error(), byID[bad].Error)
}

func TestSyncHandler_Queued(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	t.Run("selected channels", func(t *testing.T) {
		enq := new(mockEnqueuer)
		enq.On("EnqueueSync", mock.Anything, a).Return("task-a", nil)
		enq.On("EnqueueSync", mock.Anything, b).Return("", fmt.Errorf("%w: channel %s", queue.ErrAlreadyQueued, b))

		r := newEngine(alice, http.MethodPost, "/sync", NewSyncHandler(new(mockSyncer), enq, stubChannelLister{}).Sync)
		w := do(r, http.MethodPost, "/sync", SyncRequest{ChannelIDs: []uuid.UUID{a, b, a}})

		require.Equal(t, http.StatusAccepted, w.Code)
		resp := decode[struct {
			Results []SyncResultResponse `json:"results"`
		}](t, w)
		require.Len(t, resp.Results, 2)
		enq.AssertNumberOfCalls(t, "EnqueueSync", 2)
		for _, r := range resp.Results {
			if r.ChannelID == a {
				assert.Equal(t, SyncStatusQueued, r.Status)
				assert.Equal(t, "task-a", r.TaskID)
			} else {
				assert.Equal(t, SyncStatusAlreadyQueued, r.Status)
			}
		}
	})

	t.Run("every channel", func(t *testing.T) {
		enq := new(mockEnqueuer)
		enq.On("EnqueueSync", mock.Anything, mock.Anything).Return("t", nil)
		channels := stubChannelLister{{ID: a}, {ID: b}}

		r := newEngine(alice, http.MethodPost, "/sync", NewSyncHandler(new(mockSyncer), enq, channels).Sync)
		w := do(r, http.MethodPost, "/sync", `{}`)

		assert.Equal(t, http.StatusAccepted, w.Code)
		enq.AssertNumberOfCalls(t, "EnqueueSync", 2)
	})

	t.Run("malformed body", func(t *testing.T) {
		r := newEngine(alice, http.MethodPost, "/sync", NewSyncHandler(new(mockSyncer), new(mockEnqueuer), stubChannelLister{}).Sync)
		w := do(r, http.MethodPost, "/sync", `{"channel_ids":["nope"]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
