package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/database"
	"tradeQuestAPI/internal/notification"
	"tradeQuestAPI/internal/progression"
	"tradeQuestAPI/internal/storage"
	"tradeQuestAPI/internal/types/community"
)

type CommunityService struct {
	db       *pgxpool.Pool
	uploader ImageUploader
	observer ActivityObserver
	notifier Notifier
	levels   progression.LevelTable
}

func NewCommunityService(db *pgxpool.Pool, uploader ImageUploader, observer ActivityObserver, notifier Notifier, levels progression.LevelTable) *CommunityService {
	return &CommunityService{
		db:       db,
		uploader: uploader,
		observer: observer,
		notifier: notifier,
		levels:   levels,
	}
}

const postSelect = `
	SELECT p.id, p.user_id, u.display_name, u.xp, p.title, p.slug, p.content, p.tags, p.image_url,
		p.likes_count, p.comments_count,
		EXISTS(SELECT 1 FROM community_likes l WHERE l.post_id = p.id AND l.user_id = $1),
		p.created_at
	FROM community_posts p
	JOIN users u ON u.id = p.user_id
`

func (s *CommunityService) scanPost(row pgx.Row) (*community.Post, error) {
	p := &community.Post{}
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.AuthorName,
		&p.AuthorXP,
		&p.Title,
		&p.Slug,
		&p.Content,
		&p.Tags,
		&p.ImageURL,
		&p.LikesCount,
		&p.CommentsCount,
		&p.LikedByMe,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.AuthorLevel = s.levels.Level(p.AuthorXP)
	return p, nil
}

func (s *CommunityService) CreatePost(ctx context.Context, userID uuid.UUID, req *community.CreatePostRequest) (*community.Post, error) {
	var imageURL *string
	if req.ScreenshotBase64 != "" {
		if s.uploader == nil {
			return nil, apperr.Invalid("screenshot_base64", "image uploads are not enabled")
		}
		data, contentType, err := storage.DecodeImage(req.ScreenshotBase64)
		if err != nil {
			return nil, err
		}
		url, err := s.uploader.Upload(ctx, "community/"+userID.String(), data, contentType)
		if err != nil {
			return nil, err
		}
		imageURL = &url
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO community_posts (user_id, title, slug, content, tags, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, userID, req.Title, slug.Make(req.Title), req.Content, tags, imageURL).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	observe(ctx, s.observer, userID)
	return s.GetPost(ctx, userID, id)
}

// ListPosts returns the newest posts first. viewer may be uuid.Nil.
func (s *CommunityService) ListPosts(ctx context.Context, viewer uuid.UUID, limit, offset int) (*community.FeedResponse, error) {
	rows, err := s.db.Query(ctx, postSelect+`
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`, viewer, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	feed := &community.FeedResponse{Posts: []*community.Post{}, Skip: offset, Limit: limit}
	for rows.Next() {
		p, err := s.scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		feed.Posts = append(feed.Posts, p)
	}
	return feed, rows.Err()
}

func (s *CommunityService) GetPost(ctx context.Context, viewer, postID uuid.UUID) (*community.Post, error) {
	p, err := s.scanPost(s.db.QueryRow(ctx, postSelect+` WHERE p.id = $2`, viewer, postID))
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("post")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

func (s *CommunityService) DeletePost(ctx context.Context, userID, postID uuid.UUID) error {
	var owner uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT user_id FROM community_posts WHERE id = $1`, postID).Scan(&owner)
	if database.IsNoRows(err) {
		return apperr.NotFound("post")
	}
	if err != nil {
		return fmt.Errorf("failed to get post: %w", err)
	}
	if owner != userID {
		return fmt.Errorf("not the author: %w", apperr.ErrForbidden)
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM community_posts WHERE id = $1`, postID); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// ToggleLike likes the post, or removes the like when it already exists.
// The counter changes in the same transaction as the like row.
func (s *CommunityService) ToggleLike(ctx context.Context, userID, postID uuid.UUID) (*community.LikeResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin like: %w", err)
	}
	defer tx.Rollback(ctx)

	var author uuid.UUID
	var title string
	err = tx.QueryRow(ctx, `SELECT user_id, title FROM community_posts WHERE id = $1 FOR UPDATE`, postID).Scan(&author, &title)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("post")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock post: %w", err)
	}

	cmd, err := tx.Exec(ctx, `DELETE FROM community_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove like: %w", err)
	}

	result := &community.LikeResult{Liked: cmd.RowsAffected() == 0}
	delta := -1
	if result.Liked {
		delta = 1
		if _, err := tx.Exec(ctx, `INSERT INTO community_likes (post_id, user_id) VALUES ($1, $2)`, postID, userID); err != nil {
			return nil, fmt.Errorf("failed to add like: %w", err)
		}
	}

	err = tx.QueryRow(ctx, `
		UPDATE community_posts SET likes_count = likes_count + $2 WHERE id = $1 RETURNING likes_count
	`, postID, delta).Scan(&result.LikesCount)
	if err != nil {
		return nil, fmt.Errorf("failed to update like count: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit like: %w", err)
	}

	if result.Liked && author != userID {
		deliver(ctx, s.notifier, author, notification.NotificationCommunityLike,
			"New like", fmt.Sprintf("Someone liked %q", title),
			map[string]any{"post_id": postID.String()})
		observe(ctx, s.observer, author)
	}
	return result, nil
}

func (s *CommunityService) AddComment(ctx context.Context, userID, postID uuid.UUID, req *community.CreateCommentRequest) (*community.Comment, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin comment: %w", err)
	}
	defer tx.Rollback(ctx)

	var author uuid.UUID
	var title string
	err = tx.QueryRow(ctx, `
		UPDATE community_posts SET comments_count = comments_count + 1
		WHERE id = $1
		RETURNING user_id, title
	`, postID).Scan(&author, &title)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("post")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update comment count: %w", err)
	}

	c := &community.Comment{PostID: postID, UserID: userID, Content: req.Content}
	err = tx.QueryRow(ctx, `
		WITH c AS (
			INSERT INTO community_comments (post_id, user_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		)
		SELECT c.id, c.created_at, u.display_name FROM c, users u WHERE u.id = $2
	`, postID, userID, req.Content).Scan(&c.ID, &c.CreatedAt, &c.AuthorName)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit comment: %w", err)
	}

	if author != userID {
		deliver(ctx, s.notifier, author, notification.NotificationCommunityComment,
			"New comment", fmt.Sprintf("%s commented on %q", c.AuthorName, title),
			map[string]any{"post_id": postID.String(), "comment_id": c.ID.String()})
	}
	observe(ctx, s.observer, userID)
	return c, nil
}

func (s *CommunityService) ListComments(ctx context.Context, postID uuid.UUID) ([]*community.Comment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.post_id, c.user_id, u.display_name, c.content, c.created_at
		FROM community_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $1
		ORDER BY c.created_at
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*community.Comment{}
	for rows.Next() {
		c := &community.Comment{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.AuthorName, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
