package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blog/middleware"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/utils"
)

// render executes a page template with the values every page shares.
func render(ctx *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if _, ok := data["form"]; !ok {
		data["form"] = map[string]string{}
	}
	if _, ok := data["errors"]; !ok {
		data["errors"] = map[string]string{}
	}
	data["current_user"] = middleware.CurrentUser(ctx)
	data["flashes"] = utils.PopFlashes(ctx)
	ctx.HTML(status, name, data)
}

// RenderError shows the error page matching err and logs unexpected failures.
func RenderError(ctx *gin.Context, err error) {
	appErr := models.AsAppError(err)
	status := appErr.Status()
	switch status {
	case http.StatusNotFound:
		render(ctx, status, "404.html", gin.H{"title": "Not Found"})
	case http.StatusForbidden:
		render(ctx, status, "403.html", gin.H{"title": "Forbidden"})
	default:
		utils.Sugar.Errorw("request failed",
			"path", ctx.Request.URL.Path,
			"request_id", ctx.GetString(utils.RequestIDKey),
			"err", err,
		)
		render(ctx, http.StatusInternalServerError, "500.html", gin.H{"title": "Error"})
	}
}

// NotFound is the fallback for unmatched routes.
func NotFound(ctx *gin.Context) {
	RenderError(ctx, models.ErrNotFound)
}

// InternalError renders the 500 page after a recovered panic.
func InternalError(ctx *gin.Context, _ any) {
	RenderError(ctx, errors.New("panic recovered"))
}

// fieldErrors extracts per-field messages from a form error, or nil if err carries none.
func fieldErrors(err error) map[string]string {
	var appErr *models.AppError
	if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
		return appErr.Fields
	}
	return nil
}
