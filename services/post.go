package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/cppla/blog/models"
	"github.com/cppla/blog/utils"
)

const (
	cachePostsPrefix   = "cache:posts:"
	cacheUserPrefix    = "cache:user:"
	cacheListingGenKey = "cache:gen:listings"
)

// PostService owns post listing and the author-only edit rules.
type PostService struct {
	db      *gorm.DB
	cache   *utils.Cache
	perPage int
}

// NewPostService creates the service. perPage <= 0 falls back to 2.
func NewPostService(db *gorm.DB, cache *utils.Cache, perPage int) *PostService {
	if perPage <= 0 {
		perPage = 2
	}
	return &PostService{db: db, cache: cache, perPage: perPage}
}

// PerPage is the default page size.
func (s *PostService) PerPage() int {
	return s.perPage
}

// ListPosts returns one page of all posts, newest first. Pages past the end are empty.
func (s *PostService) ListPosts(ctx context.Context, page, perPage int) (models.Page[models.Post], error) {
	if perPage <= 0 {
		perPage = s.perPage
	}
	result := models.NewPage[models.Post](nil, page, perPage, 0)
	gen := s.cache.Generation(ctx, cacheListingGenKey)
	key := fmt.Sprintf("%sg%d:list:page=%d:size=%d", cachePostsPrefix, gen, result.Page, result.PerPage)
	if s.cache.GetJSON(ctx, key, &result) {
		return result, nil
	}

	q := s.db.WithContext(ctx).Model(&models.Post{})
	if err := q.Count(&result.Total).Error; err != nil {
		return result, models.NewInternalError(err)
	}
	var posts []models.Post
	if result.Total > 0 {
		err := s.db.WithContext(ctx).
			Preload("Author").
			Order("date_posted DESC, id DESC").
			Offset(result.Offset()).
			Limit(result.PerPage).
			Find(&posts).Error
		if err != nil {
			return result, models.NewInternalError(err)
		}
	}
	result = models.NewPage(posts, result.Page, result.PerPage, result.Total)
	s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// ListPostsByUser pages through the posts of one author, newest first.
func (s *PostService) ListPostsByUser(ctx context.Context, username string, page, perPage int) (*models.User, models.Page[models.Post], error) {
	if perPage <= 0 {
		perPage = s.perPage
	}
	result := models.NewPage[models.Post](nil, page, perPage, 0)

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, result, models.NewNotFoundError("user", username)
	}
	if err != nil {
		return nil, result, models.NewInternalError(err)
	}

	gen := s.cache.Generation(ctx, cacheListingGenKey)
	key := fmt.Sprintf("%sg%d:%s:posts:page=%d:size=%d", cacheUserPrefix, gen, user.Username, result.Page, result.PerPage)
	if s.cache.GetJSON(ctx, key, &result) {
		return &user, result, nil
	}

	q := s.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", user.ID)
	if err := q.Count(&result.Total).Error; err != nil {
		return nil, result, models.NewInternalError(err)
	}
	var posts []models.Post
	if result.Total > 0 {
		err := s.db.WithContext(ctx).
			Where("user_id = ?", user.ID).
			Order("date_posted DESC, id DESC").
			Offset(result.Offset()).
			Limit(result.PerPage).
			Find(&posts).Error
		if err != nil {
			return nil, result, models.NewInternalError(err)
		}
		for i := range posts {
			posts[i].Author = user
		}
	}
	result = models.NewPage(posts, result.Page, result.PerPage, result.Total)
	s.cache.SetJSON(ctx, key, result)
	return &user, result, nil
}

// GetPost loads a post with its author.
func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Preload("Author").First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("post", id)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// AuthorizeEdit loads the post and checks that editor wrote it.
func (s *PostService) AuthorizeEdit(ctx context.Context, id uint, editor *models.User) (*models.Post, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if editor == nil || post.UserID != editor.ID {
		return nil, models.NewForbiddenError("You are not the author of this post")
	}
	return post, nil
}

// CreatePost stores a new post by author. DatePosted is stamped now, in UTC.
func (s *PostService) CreatePost(ctx context.Context, author *models.User, title, content string) (*models.Post, error) {
	if author == nil {
		return nil, models.NewForbiddenError("login required")
	}
	if err := validatePost(title, content); err != nil {
		return nil, err
	}
	post := models.Post{Title: title, Content: content, UserID: author.ID}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	post.Author = *author
	s.invalidate(ctx)
	return &post, nil
}

// UpdatePost replaces title and content. Only the author may do this; DatePosted is left alone.
func (s *PostService) UpdatePost(ctx context.Context, id uint, editor *models.User, title, content string) (*models.Post, error) {
	post, err := s.AuthorizeEdit(ctx, id, editor)
	if err != nil {
		return nil, err
	}
	if err := validatePost(title, content); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).
		Updates(map[string]interface{}{"title": title, "content": content}).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	post.Title, post.Content = title, content
	s.invalidate(ctx)
	return post, nil
}

// DeletePost removes a post. Only the author may do this.
func (s *PostService) DeletePost(ctx context.Context, id uint, editor *models.User) error {
	post, err := s.AuthorizeEdit(ctx, id, editor)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Post{}, post.ID).Error; err != nil {
		return models.NewInternalError(err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *PostService) invalidate(ctx context.Context) {
	invalidateListings(ctx, s.cache)
}

// invalidateListings moves listings to a new generation first, so a page
// computed before the write and stored after it is never read back.
func invalidateListings(ctx context.Context, cache *utils.Cache) {
	cache.Bump(ctx, cacheListingGenKey)
	cache.InvalidateByPrefix(ctx, cachePostsPrefix)
	cache.InvalidateByPrefix(ctx, cacheUserPrefix)
}

func validatePost(title, content string) error {
	fields := map[string]string{}
	if strings.TrimSpace(title) == "" {
		fields["title"] = "This field is required."
	} else if len([]rune(title)) > 100 {
		fields["title"] = "Field cannot be longer than 100 characters."
	}
	if strings.TrimSpace(content) == "" {
		fields["content"] = "This field is required."
	}
	if len(fields) == 0 {
		return nil
	}
	return &models.AppError{Kind: models.KindValidation, Message: "Invalid post", Fields: fields}
}
