package community

import (
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	AuthorName    string    `json:"author_name" db:"author_name"`
	AuthorLevel   int       `json:"author_level"`
	AuthorXP      int       `json:"-" db:"author_xp"`
	Title         string    `json:"title" db:"title"`
	Slug          string    `json:"slug" db:"slug"`
	Content       string    `json:"content" db:"content"`
	Tags          []string  `json:"tags" db:"tags"`
	ImageURL      *string   `json:"image_url,omitempty" db:"image_url"`
	LikesCount    int       `json:"likes_count" db:"likes_count"`
	CommentsCount int       `json:"comments_count" db:"comments_count"`
	LikedByMe     bool      `json:"liked_by_me"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Comment struct {
	ID         uuid.UUID `json:"id" db:"id"`
	PostID     uuid.UUID `json:"post_id" db:"post_id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	AuthorName string    `json:"author_name" db:"author_name"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}
