package controllers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blog/middleware"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/services"
	"github.com/cppla/blog/utils"
)

// AuthController handles registration, login, the account page and password resets.
type AuthController struct {
	accounts *services.AccountService
	sessions *middleware.Sessions
	notifier *services.NotificationSender
}

// NewAuthController creates an AuthController.
func NewAuthController(accounts *services.AccountService, sessions *middleware.Sessions, notifier *services.NotificationSender) *AuthController {
	return &AuthController{accounts: accounts, sessions: sessions, notifier: notifier}
}

func (a *AuthController) RegisterPage(ctx *gin.Context) {
	render(ctx, http.StatusOK, "register.html", gin.H{"title": "Register"})
}

// Register creates a local account and sends the user to the login page.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerForm
	fields, err := bindForm(ctx, &req)
	if err != nil {
		RenderError(ctx, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	values := map[string]string{"username": req.Username, "email": req.Email}
	if fields != nil {
		render(ctx, http.StatusUnprocessableEntity, "register.html", gin.H{"title": "Register", "form": values, "errors": fields})
		return
	}

	if _, err := a.accounts.Register(ctx.Request.Context(), req.Username, req.Email, req.Password); err != nil {
		if fe := fieldErrors(err); fe != nil {
			render(ctx, http.StatusUnprocessableEntity, "register.html", gin.H{"title": "Register", "form": values, "errors": fe})
			return
		}
		RenderError(ctx, err)
		return
	}
	utils.AddFlash(ctx, "success", "Your account has been created! You are now able to log in")
	ctx.Redirect(http.StatusFound, "/login")
}

func (a *AuthController) LoginPage(ctx *gin.Context) {
	render(ctx, http.StatusOK, "login.html", gin.H{"title": "Login", "next": ctx.Query("next")})
}

// Login verifies credentials and starts a session. "next" is honored only for local paths.
func (a *AuthController) Login(ctx *gin.Context) {
	var req loginForm
	fields, err := bindForm(ctx, &req)
	if err != nil {
		RenderError(ctx, err)
		return
	}
	next := req.Next
	if next == "" {
		next = ctx.Query("next")
	}
	req.Email = strings.TrimSpace(req.Email)
	data := gin.H{"title": "Login", "next": next, "form": map[string]string{"email": req.Email}}
	if fields != nil {
		data["errors"] = fields
		render(ctx, http.StatusUnprocessableEntity, "login.html", data)
		return
	}

	user, err := a.accounts.Authenticate(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Kind == models.KindAuthFailed {
			utils.Sugar.Infow("login failed", "email", req.Email, "ip", ctx.ClientIP())
			utils.AddFlash(ctx, "danger", appErr.Message)
			render(ctx, http.StatusOK, "login.html", data)
			return
		}
		RenderError(ctx, err)
		return
	}
	if err := a.sessions.Login(ctx, user, req.Remember != ""); err != nil {
		RenderError(ctx, models.NewInternalError(err))
		return
	}
	if safeNext(next) {
		ctx.Redirect(http.StatusFound, next)
		return
	}
	ctx.Redirect(http.StatusFound, "/home")
}

// Logout ends the session.
func (a *AuthController) Logout(ctx *gin.Context) {
	a.sessions.Logout(ctx)
	ctx.Redirect(http.StatusFound, "/home")
}

// Account shows the profile form prefilled with the current values.
func (a *AuthController) Account(ctx *gin.Context) {
	user := middleware.CurrentUser(ctx)
	render(ctx, http.StatusOK, "account.html", gin.H{
		"title": "Account",
		"form":  map[string]string{"username": user.Username, "email": user.Email},
	})
}

// UpdateAccount saves username, email and an optional new profile picture.
func (a *AuthController) UpdateAccount(ctx *gin.Context) {
	user := middleware.CurrentUser(ctx)
	var req accountForm
	fields, err := bindForm(ctx, &req)
	if err != nil {
		RenderError(ctx, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	values := map[string]string{"username": req.Username, "email": req.Email}
	if fields != nil {
		render(ctx, http.StatusUnprocessableEntity, "account.html", gin.H{"title": "Account", "form": values, "errors": fields})
		return
	}

	var upload *services.Upload
	if fh, err := ctx.FormFile("picture"); err == nil && fh.Filename != "" {
		f, err := fh.Open()
		if err != nil {
			RenderError(ctx, models.NewInternalError(err))
			return
		}
		defer f.Close()
		upload = &services.Upload{Filename: fh.Filename, Reader: f}
	}

	if _, err := a.accounts.UpdateAccount(ctx.Request.Context(), user, req.Username, req.Email, upload); err != nil {
		if fe := fieldErrors(err); fe != nil {
			render(ctx, http.StatusUnprocessableEntity, "account.html", gin.H{"title": "Account", "form": values, "errors": fe})
			return
		}
		RenderError(ctx, err)
		return
	}
	utils.AddFlash(ctx, "success", "Your account has been updated!")
	ctx.Redirect(http.StatusFound, "/account")
}

func (a *AuthController) ResetRequestPage(ctx *gin.Context) {
	render(ctx, http.StatusOK, "reset_request.html", gin.H{"title": "Reset Password"})
}

// ResetRequest mails a reset link to a registered address.
func (a *AuthController) ResetRequest(ctx *gin.Context) {
	var req resetRequestForm
	fields, err := bindForm(ctx, &req)
	if err != nil {
		RenderError(ctx, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	values := map[string]string{"email": req.Email}
	if fields != nil {
		render(ctx, http.StatusUnprocessableEntity, "reset_request.html", gin.H{"title": "Reset Password", "form": values, "errors": fields})
		return
	}

	user, err := a.accounts.RequestReset(ctx.Request.Context(), req.Email)
	if err != nil {
		if fe := fieldErrors(err); fe != nil {
			render(ctx, http.StatusUnprocessableEntity, "reset_request.html", gin.H{"title": "Reset Password", "form": values, "errors": fe})
			return
		}
		RenderError(ctx, err)
		return
	}
	if err := a.notifier.SendResetEmail(ctx.Request.Context(), user); err != nil {
		utils.Sugar.Errorw("send reset email failed", "user_id", user.ID, "err", err)
	}
	utils.AddFlash(ctx, "info", "An email has been sent with instructions to reset your password")
	ctx.Redirect(http.StatusFound, "/login")
}

// ResetTokenPage shows the new password form when the token in the link is still valid.
func (a *AuthController) ResetTokenPage(ctx *gin.Context) {
	if _, ok := a.userForToken(ctx); !ok {
		return
	}
	render(ctx, http.StatusOK, "reset_token.html", gin.H{"title": "Reset Password"})
}

// ResetToken sets the new password.
func (a *AuthController) ResetToken(ctx *gin.Context) {
	if _, ok := a.userForToken(ctx); !ok {
		return
	}
	var req resetPasswordForm
	fields, err := bindForm(ctx, &req)
	if err != nil {
		RenderError(ctx, err)
		return
	}
	if fields != nil {
		render(ctx, http.StatusUnprocessableEntity, "reset_token.html", gin.H{"title": "Reset Password", "errors": fields})
		return
	}
	if _, err := a.accounts.ResetPassword(ctx.Request.Context(), ctx.Param("token"), req.Password); err != nil {
		if errors.Is(err, models.ErrTokenInvalid) {
			a.invalidToken(ctx)
			return
		}
		RenderError(ctx, err)
		return
	}
	utils.AddFlash(ctx, "success", "Your password has been updated! You are now able to log in")
	ctx.Redirect(http.StatusFound, "/login")
}

func (a *AuthController) userForToken(ctx *gin.Context) (*models.User, bool) {
	user, err := a.accounts.UserForResetToken(ctx.Request.Context(), ctx.Param("token"))
	if err == nil {
		return user, true
	}
	if errors.Is(err, models.ErrTokenInvalid) {
		a.invalidToken(ctx)
	} else {
		RenderError(ctx, err)
	}
	return nil, false
}

func (a *AuthController) invalidToken(ctx *gin.Context) {
	utils.AddFlash(ctx, "warning", models.NewTokenInvalidError().Message)
	ctx.Redirect(http.StatusFound, "/reset_password")
}

// safeNext accepts only same-site absolute paths.
func safeNext(next string) bool {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return false
	}
	u, err := url.Parse(next)
	return err == nil && u.Scheme == "" && u.Host == ""
}
