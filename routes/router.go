package routes

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cppla/blog/config"
	"github.com/cppla/blog/controllers"
	"github.com/cppla/blog/middleware"
	"github.com/cppla/blog/services"
	"github.com/cppla/blog/templates"
	"github.com/cppla/blog/utils"
)

// Services is everything the handlers need, built once at boot.
type Services struct {
	Accounts *services.AccountService
	Posts    *services.PostService
	Notifier *services.NotificationSender
	Sessions *middleware.Sessions
}

// NewServices wires the domain services. rc may be nil, in which case caching is off and
// logouts are remembered in process memory.
func NewServices(cfg config.AppConfig, db *gorm.DB, rc *redis.Client, mailer utils.Mailer) *Services {
	codec := utils.NewTokenCodec(cfg.SecretKey)
	cache := utils.NewCache(rc, cfg.CacheTTL)
	creds := services.NewCredentialService(codec, cfg.ResetTokenTTL())
	media := services.NewMediaHandler(cfg.ProfilePicsDir, int64(cfg.MaxUploadSizeMB)<<20).
		WithDefaultFile(cfg.DefaultProfilePicture)
	accounts := services.NewAccountService(db, creds, media, cache)

	return &Services{
		Accounts: accounts,
		Posts:    services.NewPostService(db, cache, cfg.PostsPerPage),
		Notifier: services.NewNotificationSender(mailer, creds, cfg.BaseURL, cfg.MailSender),
		Sessions: middleware.NewSessions(codec, utils.NewRevocations(rc), accounts, cfg),
	}
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, svc *Services) (*gin.Engine, error) {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = int64(max(cfg.MaxUploadSizeMB, 1)) << 20
	r.Use(utils.RequestID())
	// Replace default console logger with file-based zap logger
	if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg); err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false, controllers.InternalError))
	} else {
		r.Use(utils.RecoveryWithZap(utils.Logger, false, controllers.InternalError))
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDKey},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.PageViewRecorder())

	tmpl, err := templates.Load(cfg.DefaultProfilePicture)
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)
	controllers.RegisterFormValidation()

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = "static"
	}
	r.Static("/static", filepath.Clean(staticDir))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authController := controllers.NewAuthController(svc.Accounts, svc.Sessions, svc.Notifier)
	postController := controllers.NewPostController(svc.Posts)

	site := r.Group("")
	site.Use(svc.Sessions.Load())

	site.GET("/", postController.Home)
	site.GET("/home", postController.Home)
	site.GET("/about", postController.About)
	site.GET("/post/:id", postController.ShowPost)
	site.GET("/user/:username", postController.UserPosts)
	site.GET("/logout", authController.Logout)

	anon := site.Group("")
	anon.Use(middleware.AnonymousOnly(), middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	anon.GET("/register", authController.RegisterPage)
	anon.POST("/register", authController.Register)
	anon.GET("/login", authController.LoginPage)
	anon.POST("/login", authController.Login)
	anon.GET("/reset_password", authController.ResetRequestPage)
	anon.POST("/reset_password", authController.ResetRequest)
	anon.GET("/reset_password/:token", authController.ResetTokenPage)
	anon.POST("/reset_password/:token", authController.ResetToken)

	protected := site.Group("")
	protected.Use(middleware.LoginRequired())
	protected.GET("/account", authController.Account)
	protected.POST("/account", authController.UpdateAccount)
	protected.GET("/post/new", postController.NewPostPage)
	protected.POST("/post/new", postController.CreatePost)
	protected.GET("/post/:id/update", postController.UpdatePostPage)
	protected.POST("/post/:id/update", postController.UpdatePost)
	protected.POST("/post/:id/delete", postController.DeletePost)

	r.NoRoute(svc.Sessions.Load(), func(ctx *gin.Context) {
		// static assets and machine clients get a plain 404
		if strings.HasPrefix(ctx.Request.URL.Path, "/static/") || !utils.WantsHTML(ctx) {
			utils.Error(ctx, http.StatusNotFound, 40400, "not found")
			return
		}
		controllers.NotFound(ctx)
	})

	return r, nil
}
