package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediafeed/mediafeed-go/internal/fetch"
)

func TestChannelResolver_Resolve(t *testing.T) {
	r := NewChannelResolver("", nil)

	tests := []struct {
		name    string
		pageURL string
		want    string
		wantErr bool
	}{
		{
			name:    "channel id url",
			pageURL: "https://www.youtube.com/channel/UCsn8UgBuRxGGqKmrAy5d3gA",
			want:    "https://www.youtube.com/feeds/videos.xml?channel_id=UCsn8UgBuRxGGqKmrAy5d3gA",
		},
		{
			name:    "user url",
			pageURL: "https://www.youtube.com/user/arduinoteam",
			want:    "https://www.youtube.com/feeds/videos.xml?user=arduinoteam",
		},
		{
			name:    "trailing tab segment is ignored",
			pageURL: "https://www.youtube.com/channel/UCsn8UgBuRxGGqKmrAy5d3gA/videos?view=0",
			want:    "https://www.youtube.com/feeds/videos.xml?channel_id=UCsn8UgBuRxGGqKmrAy5d3gA",
		},
		{
			name:    "missing scheme",
			pageURL: "youtube.com/user/arduinoteam",
			want:    "https://www.youtube.com/feeds/videos.xml?user=arduinoteam",
		},
		{name: "handle url", pageURL: "https://www.youtube.com/@arduino", wantErr: true},
		{name: "watch url", pageURL: "https://www.youtube.com/watch?v=abc", wantErr: true},
		{name: "channel without id", pageURL: "https://www.youtube.com/channel/", wantErr: true},
		{name: "empty", pageURL: "", wantErr: true},
		{name: "garbage", pageURL: "::::", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.pageURL)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnresolvableChannelURL)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelResolver_ResolveCustomBase(t *testing.T) {
	r := NewChannelResolver("https://feeds.example.com/videos.xml?format=atom", nil)

	got, err := r.Resolve("https://www.youtube.com/user/some user")
	require.NoError(t, err)
	assert.Equal(t, "https://feeds.example.com/videos.xml?format=atom&user=some+user", got)
}

func TestChannelResolver_FetchTitle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/channel/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head>
			<meta property="og:title" content="ignored">
			<meta itemprop="name" content=" Arduino ">
		</head><body></body></html>`))
	})
	mux.HandleFunc("/channel/no-meta", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Arduino</title></head></html>`))
	})
	mux.HandleFunc("/channel/empty-meta", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><meta itemprop="name" content=""></head></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := fetch.DefaultConfig()
	cfg.MaxRetries = 0
	r := NewChannelResolver("", fetch.New(cfg, srv.Client(), nil))
	ctx := context.Background()

	t.Run("title from meta tag", func(t *testing.T) {
		title, err := r.FetchTitle(ctx, srv.URL+"/channel/ok")
		require.NoError(t, err)
		require.NotNil(t, title)
		assert.Equal(t, "Arduino", *title)
	})

	t.Run("not found page yields no title", func(t *testing.T) {
		title, err := r.FetchTitle(ctx, srv.URL+"/channel/missing")
		require.NoError(t, err)
		assert.Nil(t, title)
	})

	t.Run("page without meta tag", func(t *testing.T) {
		title, err := r.FetchTitle(ctx, srv.URL+"/channel/no-meta")
		require.NoError(t, err)
		assert.Nil(t, title)
	})

	t.Run("empty meta content", func(t *testing.T) {
		title, err := r.FetchTitle(ctx, srv.URL+"/channel/empty-meta")
		require.NoError(t, err)
		assert.Nil(t, title)
	})
}
