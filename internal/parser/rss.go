package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

func parseRSS(raw []byte) (*Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, malformed(err)
	}

	feed := &Feed{
		Title:   strings.TrimSpace(parsed.Title),
		Entries: make([]Entry, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		entry, err := rssEntry(item)
		if err != nil {
			return nil, malformed(err)
		}
		feed.Entries = append(feed.Entries, entry)
	}
	return feed, nil
}

func rssEntry(item *gofeed.Item) (Entry, error) {
	published, err := parseDate(item.Published)
	if err != nil {
		if item.PublishedParsed == nil {
			return Entry{}, err
		}
		published = item.PublishedParsed.UTC()
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return Entry{}, errors.New("serialize rss item")
	}

	videoID := extValue(item.Extensions, "yt", "videoId")
	if videoID == "" {
		videoID = strings.TrimSpace(item.GUID)
	}

	return Entry{
		VideoID:      videoID,
		Link:         strings.TrimSpace(item.Link),
		Title:        strings.TrimSpace(item.Title),
		ThumbnailURL: rssThumbnail(item),
		Published:    published,
		Raw:          string(raw),
	}, nil
}

// rssThumbnail prefers media:thumbnail, then media:group/media:thumbnail,
// then the item image.
func rssThumbnail(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, th := range media["thumbnail"] {
			if u := th.Attrs["url"]; u != "" {
				return u
			}
		}
		for _, group := range media["group"] {
			for _, th := range group.Children["thumbnail"] {
				if u := th.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}

func extValue(exts ext.Extensions, prefix, name string) string {
	for _, e := range exts[prefix][name] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}
