// Package parser turns video feed documents into a flat list of entries.
//
// Atom documents (the YouTube videos.xml shape) are decoded directly so each
// entry's original bytes can be kept. RSS 2.0 and RSS 1.0 (RDF) documents go
// through gofeed.
package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrMalformedFeed is returned for documents that are not a recognised feed
// or whose entries cannot be read.
var ErrMalformedFeed = errors.New("malformed feed")

// Feed is a parsed feed document.
type Feed struct {
	Title   string
	Entries []Entry
}

// Entry is one item of a feed, in document order.
type Entry struct {
	// VideoID is the external id carried by the entry itself. It is empty
	// when the document only has a watch link.
	VideoID      string
	Link         string
	Title        string
	ThumbnailURL string
	Published    time.Time
	// Raw is the entry as it appeared in the document.
	Raw string
}

// Parse decodes raw. A document with no entries is valid and yields an empty
// Entries slice.
func Parse(raw []byte) (*Feed, error) {
	root, err := rootElement(raw)
	if err != nil {
		return nil, malformed(err)
	}

	switch root {
	case "feed":
		return parseAtom(raw)
	case "rss", "RDF":
		return parseRSS(raw)
	default:
		return nil, fmt.Errorf("%w: unexpected root element <%s>", ErrMalformedFeed, root)
	}
}

func newDecoder(raw []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	return dec
}

func rootElement(raw []byte) (string, error) {
	dec := newDecoder(raw)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errors.New("no root element")
			}
			return "", err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

// parseDate accepts the many layouts feeds use in the wild. Strings without a
// zone are read as UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing publish date")
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("publish date %q: %w", s, err)
	}
	return t.UTC(), nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedFeed, err)
}
