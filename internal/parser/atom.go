package parser

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

type atomEntry struct {
	ID        string           `xml:"id"`
	VideoID   string           `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
	Title     string           `xml:"title"`
	Links     []atomLink       `xml:"link"`
	Published string           `xml:"published"`
	Updated   string           `xml:"updated"`
	Group     mediaGroup       `xml:"http://search.yahoo.com/mrss/ group"`
	Thumbs    []mediaThumbnail `xml:"http://search.yahoo.com/mrss/ thumbnail"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type mediaGroup struct {
	Thumbs []mediaThumbnail `xml:"http://search.yahoo.com/mrss/ thumbnail"`
}

type mediaThumbnail struct {
	URL string `xml:"url,attr"`
}

// parseAtom walks the document token by token so that each entry's byte
// range can be sliced out of raw.
func parseAtom(raw []byte) (*Feed, error) {
	dec := newDecoder(raw)
	feed := &Feed{Entries: []Entry{}}

	depth := 0
	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth != 1 {
				depth++
				continue
			}
			switch t.Name.Local {
			case "title":
				var title string
				if err := dec.DecodeElement(&title, &t); err != nil {
					return nil, malformed(err)
				}
				feed.Title = strings.TrimSpace(title)
			case "entry":
				var ae atomEntry
				if err := dec.DecodeElement(&ae, &t); err != nil {
					return nil, malformed(err)
				}
				entry, err := ae.toEntry(string(raw[offset:dec.InputOffset()]))
				if err != nil {
					return nil, malformed(err)
				}
				feed.Entries = append(feed.Entries, entry)
			default:
				if err := dec.Skip(); err != nil {
					return nil, malformed(err)
				}
			}
		case xml.EndElement:
			depth--
		}
	}

	return feed, nil
}

func (ae *atomEntry) toEntry(raw string) (Entry, error) {
	stamp := ae.Published
	if strings.TrimSpace(stamp) == "" {
		stamp = ae.Updated
	}
	published, err := parseDate(stamp)
	if err != nil {
		return Entry{}, err
	}

	videoID := strings.TrimSpace(ae.VideoID)
	if videoID == "" {
		if id := strings.TrimSpace(ae.ID); strings.HasPrefix(id, "yt:video:") {
			videoID = strings.TrimPrefix(id, "yt:video:")
		}
	}

	return Entry{
		VideoID:      videoID,
		Link:         ae.link(),
		Title:        strings.TrimSpace(ae.Title),
		ThumbnailURL: ae.thumbnail(),
		Published:    published,
		Raw:          raw,
	}, nil
}

func (ae *atomEntry) link() string {
	for _, l := range ae.Links {
		if l.Rel == "alternate" || l.Rel == "" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(ae.Links) > 0 {
		return strings.TrimSpace(ae.Links[0].Href)
	}
	return ""
}

func (ae *atomEntry) thumbnail() string {
	for _, th := range append(ae.Group.Thumbs, ae.Thumbs...) {
		if th.URL != "" {
			return th.URL
		}
	}
	return ""
}
