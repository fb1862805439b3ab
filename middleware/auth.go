package middleware

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blog/config"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/utils"
)

const (
	// SessionCookie holds the signed session token.
	SessionCookie = "session"
	// ContextUserKey stores the authenticated *models.User inside Gin context.
	ContextUserKey = "current_user"
	// ContextTokenKey stores the raw session token inside Gin context.
	ContextTokenKey = "session_token"
	// ContextClaimsKey stores the parsed session claims inside Gin context.
	ContextClaimsKey = "session_claims"
)

// UserFinder loads the user a session points at.
type UserFinder interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// Sessions issues, resolves and revokes cookie sessions.
type Sessions struct {
	codec   *utils.TokenCodec
	revoked *utils.Revocations
	users   UserFinder
	ttl     time.Duration
	longTTL time.Duration
	secure  bool
}

func NewSessions(codec *utils.TokenCodec, revoked *utils.Revocations, users UserFinder, cfg config.AppConfig) *Sessions {
	ttl, longTTL := cfg.SessionTTL, cfg.RememberTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if longTTL <= 0 {
		longTTL = 30 * 24 * time.Hour
	}
	return &Sessions{
		codec:   codec,
		revoked: revoked,
		users:   users,
		ttl:     ttl,
		longTTL: longTTL,
		secure:  cfg.CookieSecure,
	}
}

// Load resolves the current user from the session cookie. Any failure leaves the request anonymous.
func (s *Sessions) Load() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie(SessionCookie)
		if err != nil || token == "" {
			ctx.Next()
			return
		}
		claims, err := s.codec.ParseSessionToken(token)
		if err != nil {
			s.clearCookie(ctx)
			ctx.Next()
			return
		}
		if s.revoked.IsRevoked(ctx.Request.Context(), token) {
			s.clearCookie(ctx)
			ctx.Next()
			return
		}
		user, err := s.users.GetByID(ctx.Request.Context(), claims.UserID)
		if err != nil {
			utils.Sugar.Debugw("session user lookup failed", "user_id", claims.UserID, "err", err)
			s.clearCookie(ctx)
			ctx.Next()
			return
		}

		ctx.Set(ContextUserKey, user)
		ctx.Set(ContextTokenKey, token)
		ctx.Set(ContextClaimsKey, claims)
		ctx.Next()
	}
}

// Login starts a session for user. Remembered sessions survive a browser restart.
func (s *Sessions) Login(ctx *gin.Context, user *models.User, remember bool) error {
	ttl := s.ttl
	if remember {
		ttl = s.longTTL
	}
	token, _, err := s.codec.IssueSessionToken(user.ID, user.Username, remember, ttl)
	if err != nil {
		return err
	}
	maxAge := 0
	if remember {
		maxAge = int(ttl.Seconds())
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(SessionCookie, token, maxAge, "/", "", s.secure, true)
	ctx.Set(ContextUserKey, user)
	return nil
}

// Logout revokes the current session token until it expires and drops the cookie.
func (s *Sessions) Logout(ctx *gin.Context) {
	if v, ok := ctx.Get(ContextClaimsKey); ok {
		if claims, ok := v.(*utils.SessionClaims); ok && claims.ExpiresAt != nil {
			s.revoked.Revoke(ctx.Request.Context(), ctx.GetString(ContextTokenKey), claims.ExpiresAt.Time)
		}
	}
	ctx.Set(ContextUserKey, nil)
	s.clearCookie(ctx)
}

func (s *Sessions) clearCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(SessionCookie, "", -1, "/", "", s.secure, true)
}

// CurrentUser returns the logged-in user or nil for anonymous requests.
func CurrentUser(ctx *gin.Context) *models.User {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// LoginRequired sends anonymous visitors to the login page, remembering where they were going.
func LoginRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if CurrentUser(ctx) != nil {
			ctx.Next()
			return
		}
		utils.AddFlash(ctx, "info", "Please log in to access this page.")
		ctx.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(ctx.Request.URL.RequestURI()))
		ctx.Abort()
	}
}

// AnonymousOnly keeps logged-in users away from the login and registration pages.
func AnonymousOnly() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if CurrentUser(ctx) != nil {
			ctx.Redirect(http.StatusFound, "/home")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
