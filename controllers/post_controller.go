package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blog/middleware"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/services"
	"github.com/cppla/blog/utils"
)

// PostController serves the post listings and the author-only edit pages.
type PostController struct {
	posts *services.PostService
}

// NewPostController creates a PostController.
func NewPostController(posts *services.PostService) *PostController {
	return &PostController{posts: posts}
}

// Home lists all posts newest first.
func (p *PostController) Home(ctx *gin.Context) {
	page, err := p.posts.ListPosts(ctx.Request.Context(), parsePage(ctx.Query("page")), 0)
	if err != nil {
		RenderError(ctx, err)
		return
	}
	render(ctx, http.StatusOK, "home.html", gin.H{"posts": page})
}

func (p *PostController) About(ctx *gin.Context) {
	render(ctx, http.StatusOK, "about.html", gin.H{"title": "About"})
}

func (p *PostController) NewPostPage(ctx *gin.Context) {
	render(ctx, http.StatusOK, "create_post.html", gin.H{"title": "New Post", "legend": "New Post"})
}

// CreatePost publishes a post by the current user.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postForm
	fields, err := bindForm(ctx, &req)
	if err != nil {
		RenderError(ctx, err)
		return
	}
	if fields == nil {
		_, err = p.posts.CreatePost(ctx.Request.Context(), middleware.CurrentUser(ctx), req.Title, req.Content)
		fields = fieldErrors(err)
		if err != nil && fields == nil {
			RenderError(ctx, err)
			return
		}
	}
	if fields != nil {
		render(ctx, http.StatusUnprocessableEntity, "create_post.html", gin.H{
			"title":  "New Post",
			"legend": "New Post",
			"form":   map[string]string{"title": req.Title, "content": req.Content},
			"errors": fields,
		})
		return
	}
	utils.AddFlash(ctx, "success", "Your post has been created!")
	ctx.Redirect(http.StatusFound, "/home")
}

// ShowPost renders a single post.
func (p *PostController) ShowPost(ctx *gin.Context) {
	id, ok := postID(ctx)
	if !ok {
		return
	}
	post, err := p.posts.GetPost(ctx.Request.Context(), id)
	if err != nil {
		RenderError(ctx, err)
		return
	}
	user := middleware.CurrentUser(ctx)
	render(ctx, http.StatusOK, "post.html", gin.H{
		"title":     post.Title,
		"post":      post,
		"is_author": user != nil && user.ID == post.UserID,
	})
}

// UpdatePostPage shows the edit form to the author.
func (p *PostController) UpdatePostPage(ctx *gin.Context) {
	id, ok := postID(ctx)
	if !ok {
		return
	}
	post, err := p.posts.AuthorizeEdit(ctx.Request.Context(), id, middleware.CurrentUser(ctx))
	if err != nil {
		RenderError(ctx, err)
		return
	}
	render(ctx, http.StatusOK, "create_post.html", gin.H{
		"title":  "Update Post",
		"legend": "Update Post",
		"form":   map[string]string{"title": post.Title, "content": post.Content},
	})
}

// UpdatePost saves an edit. Non-authors get 403 whatever they submitted.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, ok := postID(ctx)
	if !ok {
		return
	}
	editor := middleware.CurrentUser(ctx)
	if _, err := p.posts.AuthorizeEdit(ctx.Request.Context(), id, editor); err != nil {
		RenderError(ctx, err)
		return
	}

	var req postForm
	fields, err := bindForm(ctx, &req)
	if err != nil {
		RenderError(ctx, err)
		return
	}
	if fields == nil {
		_, err = p.posts.UpdatePost(ctx.Request.Context(), id, editor, req.Title, req.Content)
		fields = fieldErrors(err)
		if err != nil && fields == nil {
			RenderError(ctx, err)
			return
		}
	}
	if fields != nil {
		render(ctx, http.StatusUnprocessableEntity, "create_post.html", gin.H{
			"title":  "Update Post",
			"legend": "Update Post",
			"form":   map[string]string{"title": req.Title, "content": req.Content},
			"errors": fields,
		})
		return
	}
	utils.AddFlash(ctx, "success", "Your post has been updated!")
	ctx.Redirect(http.StatusFound, fmt.Sprintf("/post/%d", id))
}

// DeletePost removes a post owned by the current user.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := postID(ctx)
	if !ok {
		return
	}
	if err := p.posts.DeletePost(ctx.Request.Context(), id, middleware.CurrentUser(ctx)); err != nil {
		RenderError(ctx, err)
		return
	}
	utils.AddFlash(ctx, "success", "Your post has been deleted!")
	ctx.Redirect(http.StatusFound, "/home")
}

// UserPosts lists the posts of one author.
func (p *PostController) UserPosts(ctx *gin.Context) {
	user, page, err := p.posts.ListPostsByUser(ctx.Request.Context(), ctx.Param("username"), parsePage(ctx.Query("page")), 0)
	if err != nil {
		RenderError(ctx, err)
		return
	}
	render(ctx, http.StatusOK, "user_posts.html", gin.H{"title": user.Username, "user": user, "posts": page})
}

func parsePage(pageStr string) int {
	if p, err := strconv.Atoi(strings.TrimSpace(pageStr)); err == nil && p > 0 {
		return p
	}
	return 1
}

// postID parses the :id path segment, rendering 404 when it is not a positive integer.
func postID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		RenderError(ctx, models.NewNotFoundError("post", ctx.Param("id")))
		return 0, false
	}
	return uint(id), true
}
