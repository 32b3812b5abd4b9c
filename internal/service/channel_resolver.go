package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mediafeed/mediafeed-go/internal/fetch"
)

// DefaultFeedBaseURL is the YouTube per-channel Atom endpoint.
const DefaultFeedBaseURL = "https://www.youtube.com/feeds/videos.xml"

var channelPathPattern = regexp.MustCompile(`^/(channel|user)/([^/]+)`)

// ChannelResolver maps channel page URLs onto feed URLs and scrapes channel
// titles.
type ChannelResolver struct {
	feedBaseURL string
	fetcher     fetch.Fetcher
}

// NewChannelResolver creates a ChannelResolver. An empty feedBaseURL uses
// DefaultFeedBaseURL.
func NewChannelResolver(feedBaseURL string, fetcher fetch.Fetcher) *ChannelResolver {
	if feedBaseURL == "" {
		feedBaseURL = DefaultFeedBaseURL
	}
	return &ChannelResolver{
		feedBaseURL: feedBaseURL,
		fetcher:     fetcher,
	}
}

// Resolve returns the feed URL for a channel page:
//
//	.../channel/<id>  -> <base>?channel_id=<id>
//	.../user/<name>   -> <base>?user=<name>
//
// Segments after the id or name are ignored. Every other shape fails with
// ErrUnresolvableChannelURL.
func (r *ChannelResolver) Resolve(pageURL string) (string, error) {
	u, err := url.Parse(NormalizePageURL(pageURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnresolvableChannelURL, pageURL)
	}

	m := channelPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrUnresolvableChannelURL, pageURL)
	}

	param := "user"
	if m[1] == "channel" {
		param = "channel_id"
	}

	feedURL, err := url.Parse(r.feedBaseURL)
	if err != nil {
		return "", fmt.Errorf("parse feed base url: %w", err)
	}
	q := feedURL.Query()
	q.Set(param, m[2])
	feedURL.RawQuery = q.Encode()

	return feedURL.String(), nil
}

// NormalizePageURL trims pageURL and assumes https when it has no scheme.
func NormalizePageURL(pageURL string) string {
	raw := strings.TrimSpace(pageURL)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return raw
}

// FetchTitle scrapes the content of the page's meta[itemprop=name] tag. It
// returns nil without error when the page answers non-2xx or has no such tag.
func (r *ChannelResolver) FetchTitle(ctx context.Context, pageURL string) (*string, error) {
	resp, err := r.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch channel page: %w", err)
	}
	if !resp.OK() {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse channel page: %w", err)
	}

	content, ok := doc.Find(`meta[itemprop="name"]`).First().Attr("content")
	content = strings.TrimSpace(content)
	if !ok || content == "" {
		return nil, nil
	}
	return &content, nil
}
