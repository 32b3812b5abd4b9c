package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediafeed/mediafeed-go/pkg/slug"
)

// Category is a user-owned, named group of channels.
type Category struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	Title     string    `db:"title" json:"title"`
	Slug      string    `db:"slug" json:"slug"`
	Public    bool      `db:"public" json:"public"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewCategory creates a Category with its slug derived from title.
func NewCategory(ownerID uuid.UUID, title string, public bool) *Category {
	now := time.Now().UTC()
	return &Category{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		Slug:      slug.Make(title),
		Public:    public,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Rename sets the title and recomputes the slug.
func (c *Category) Rename(title string) {
	c.Title = title
	c.Slug = slug.Make(title)
	c.UpdatedAt = time.Now().UTC()
}

// User owns categories. Usernames are unique.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Is reports whether u and other are the same non-nil user.
func (u *User) Is(other *User) bool {
	return u != nil && other != nil && u.ID == other.ID
}
