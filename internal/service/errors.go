package service

import (
	"errors"

	"github.com/mediafeed/mediafeed-go/internal/parser"
)

var (
	// ErrUnresolvableChannelURL means a page URL matches neither the
	// /channel/<id> nor the /user/<name> shape. Channel creation stops.
	ErrUnresolvableChannelURL = errors.New("unresolvable channel url")

	// ErrFeedUnreachable covers transport failures and non-2xx feed responses.
	ErrFeedUnreachable = errors.New("feed unreachable")

	// ErrMalformedFeed is returned when a fetched feed cannot be parsed.
	ErrMalformedFeed = parser.ErrMalformedFeed

	// ErrNotFound is the only answer a viewer gets for a user or category
	// that is absent or not visible to them.
	ErrNotFound = errors.New("not found")

	// ErrChannelNotFound is returned for unknown channel ids.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrChannelTitleUnavailable means no title was supplied and none could
	// be scraped from the page or read from the feed.
	ErrChannelTitleUnavailable = errors.New("channel title unavailable")

	// ErrCategoryConflict means the owner already has a category with the
	// same title or slug.
	ErrCategoryConflict = errors.New("category already exists")

	// ErrInvalidCategoryTitle means the title yields an empty slug.
	ErrInvalidCategoryTitle = errors.New("category title must contain letters or digits")
)
