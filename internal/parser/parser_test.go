package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const youtubeFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <link rel="self" href="http://www.youtube.com/feeds/videos.xml?channel_id=UCsn8UgBuRxGGqKmrAy5d3gA"/>
 <id>yt:channel:UCsn8UgBuRxGGqKmrAy5d3gA</id>
 <yt:channelId>UCsn8UgBuRxGGqKmrAy5d3gA</yt:channelId>
 <title>Arduino</title>
 <author>
  <name>Arduino</name>
  <uri>https://www.youtube.com/channel/UCsn8UgBuRxGGqKmrAy5d3gA</uri>
 </author>
 <published>2011-03-29T14:43:56+00:00</published>
 <entry>
  <id>yt:video:k7MHEkY1iPU</id>
  <yt:videoId>k7MHEkY1iPU</yt:videoId>
  <yt:channelId>UCsn8UgBuRxGGqKmrAy5d3gA</yt:channelId>
  <title>Arduino Nano Matter</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=k7MHEkY1iPU"/>
  <published>2024-05-02T15:00:10+00:00</published>
  <updated>2024-05-03T01:20:11+00:00</updated>
  <media:group>
   <media:title>Arduino Nano Matter</media:title>
   <media:thumbnail url="https://i1.ytimg.com/vi/k7MHEkY1iPU/hqdefault.jpg" width="480" height="360"/>
   <media:description>New board</media:description>
  </media:group>
 </entry>
 <entry>
  <id>yt:video:Zx1Q2w3E4r5</id>
  <title>Older video</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=Zx1Q2w3E4r5"/>
  <published>2024-04-30T08:00:00+02:00</published>
  <media:group>
   <media:thumbnail url="https://i1.ytimg.com/vi/Zx1Q2w3E4r5/hqdefault.jpg"/>
  </media:group>
 </entry>
</feed>`

func TestParse_YouTubeAtom(t *testing.T) {
	feed, err := Parse([]byte(youtubeFeed))
	require.NoError(t, err)

	assert.Equal(t, "Arduino", feed.Title)
	require.Len(t, feed.Entries, 2)

	first := feed.Entries[0]
	assert.Equal(t, "k7MHEkY1iPU", first.VideoID)
	assert.Equal(t, "Arduino Nano Matter", first.Title)
	assert.Equal(t, "https://www.youtube.com/watch?v=k7MHEkY1iPU", first.Link)
	assert.Equal(t, "https://i1.ytimg.com/vi/k7MHEkY1iPU/hqdefault.jpg", first.ThumbnailURL)
	assert.Equal(t, time.Date(2024, 5, 2, 15, 0, 10, 0, time.UTC), first.Published)
	assert.True(t, strings.HasPrefix(first.Raw, "<entry>"))
	assert.True(t, strings.HasSuffix(first.Raw, "</entry>"))
	assert.Contains(t, first.Raw, "<yt:videoId>k7MHEkY1iPU</yt:videoId>")
	assert.NotContains(t, first.Raw, "Older video")

	second := feed.Entries[1]
	assert.Equal(t, "Zx1Q2w3E4r5", second.VideoID, "falls back to the yt:video: id")
	assert.Equal(t, time.Date(2024, 4, 30, 6, 0, 0, 0, time.UTC), second.Published)
	assert.Equal(t, time.UTC, second.Published.Location())
}

func TestParse_AtomEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantErr   bool
		wantCount int
		check     func(t *testing.T, f *Feed)
	}{
		{
			name:      "feed without entries is valid",
			doc:       `<feed xmlns="http://www.w3.org/2005/Atom"><title>Quiet</title></feed>`,
			wantCount: 0,
			check: func(t *testing.T, f *Feed) {
				assert.NotNil(t, f.Entries)
				assert.Equal(t, "Quiet", f.Title)
			},
		},
		{
			name: "entry without explicit id keeps link only",
			doc: `<feed xmlns="http://www.w3.org/2005/Atom"><entry>
				<title>t</title><link href="https://www.youtube.com/watch?v=abc"/>
				<published>2024-01-01T00:00:00Z</published></entry></feed>`,
			wantCount: 1,
			check: func(t *testing.T, f *Feed) {
				assert.Equal(t, "", f.Entries[0].VideoID)
				assert.Equal(t, "https://www.youtube.com/watch?v=abc", f.Entries[0].Link)
				assert.Equal(t, "", f.Entries[0].ThumbnailURL)
			},
		},
		{
			name: "alternate link wins over others",
			doc: `<feed xmlns="http://www.w3.org/2005/Atom"><entry>
				<link rel="enclosure" href="https://cdn/video.mp4"/>
				<link rel="alternate" href="https://vimeo.com/1"/>
				<published>2024-01-01T00:00:00Z</published></entry></feed>`,
			wantCount: 1,
			check: func(t *testing.T, f *Feed) {
				assert.Equal(t, "https://vimeo.com/1", f.Entries[0].Link)
			},
		},
		{
			name: "loose date layout",
			doc: `<feed xmlns="http://www.w3.org/2005/Atom"><entry>
				<published>May 8, 2009 5:57:51 PM</published></entry></feed>`,
			wantCount: 1,
			check: func(t *testing.T, f *Feed) {
				assert.Equal(t, time.Date(2009, 5, 8, 17, 57, 51, 0, time.UTC), f.Entries[0].Published)
			},
		},
		{
			name: "updated used when published is missing",
			doc: `<feed xmlns="http://www.w3.org/2005/Atom"><entry>
				<updated>2024-02-02T10:00:00Z</updated></entry></feed>`,
			wantCount: 1,
		},
		{
			name:    "unparseable date",
			doc:     `<feed xmlns="http://www.w3.org/2005/Atom"><entry><published>sometime soon</published></entry></feed>`,
			wantErr: true,
		},
		{
			name:    "missing date",
			doc:     `<feed xmlns="http://www.w3.org/2005/Atom"><entry><title>x</title></entry></feed>`,
			wantErr: true,
		},
		{
			name:    "truncated document",
			doc:     `<feed xmlns="http://www.w3.org/2005/Atom"><entry><title>x</title>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed, err := Parse([]byte(tt.doc))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedFeed)
				return
			}
			require.NoError(t, err)
			assert.Len(t, feed.Entries, tt.wantCount)
			if tt.check != nil {
				tt.check(t, feed)
			}
		})
	}
}

func TestParse_RSS(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
 <channel>
  <title>Vimeo / Staff Picks</title>
  <link>https://vimeo.com/channels/staffpicks</link>
  <item>
   <title>Short film</title>
   <link>https://vimeo.com/123456</link>
   <guid isPermaLink="false">tag:vimeo,2024:clip123456</guid>
   <pubDate>Tue, 10 Jun 2003 04:00:00 GMT</pubDate>
   <media:thumbnail url="https://i.vimeocdn.com/video/123456.jpg"/>
  </item>
  <item>
   <title>Grouped thumbnail</title>
   <link>https://www.youtube.com/watch?v=qwerty</link>
   <pubDate>2024-06-01 12:30:00</pubDate>
   <media:group><media:thumbnail url="https://i.ytimg.com/vi/qwerty/hq.jpg"/></media:group>
  </item>
 </channel>
</rss>`

	feed, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "Vimeo / Staff Picks", feed.Title)
	require.Len(t, feed.Entries, 2)

	first := feed.Entries[0]
	assert.Equal(t, "tag:vimeo,2024:clip123456", first.VideoID)
	assert.Equal(t, "https://vimeo.com/123456", first.Link)
	assert.Equal(t, "https://i.vimeocdn.com/video/123456.jpg", first.ThumbnailURL)
	assert.Equal(t, time.Date(2003, 6, 10, 4, 0, 0, 0, time.UTC), first.Published)
	assert.Contains(t, first.Raw, `"title":"Short film"`)

	second := feed.Entries[1]
	assert.Equal(t, "", second.VideoID)
	assert.Equal(t, "https://i.ytimg.com/vi/qwerty/hq.jpg", second.ThumbnailURL)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC), second.Published)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty body", ""},
		{"not xml", "this is not a feed"},
		{"html page", "<html><head><title>Oops</title></head><body></body></html>"},
		{"json", `{"items": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrMalformedFeed)
		})
	}
}
