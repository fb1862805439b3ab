package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/blog/config"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/utils"
)

type outbox struct {
	mu   sync.Mutex
	mail []utils.Email
}

func (o *outbox) Send(_ context.Context, email utils.Email) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mail = append(o.mail, email)
	return nil
}

func (o *outbox) resetPath(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.mail)
	for _, line := range strings.Split(o.mail[len(o.mail)-1].Body, "\n") {
		if strings.HasPrefix(line, "http://blog.test/reset_password/") {
			return strings.TrimPrefix(line, "http://blog.test")
		}
	}
	t.Fatal("no reset link in mail")
	return ""
}

type testApp struct {
	router *gin.Engine
	db     *gorm.DB
	outbox *outbox
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := gorm.Open(config.Dialector(config.AppConfig{DatabaseURI: "sqlite::memory:"}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := config.AppConfig{
		SecretKey:          "test-secret",
		BaseURL:            "http://blog.test",
		GinMode:            "test",
		PostsPerPage:       2,
		MailSender:         "noreply@demo.com",
		StaticDir:          t.TempDir(),
		ProfilePicsDir:     t.TempDir(),
		MaxUploadSizeMB:    8,
		RateLimitPerMinute: 1000,
	}
	box := &outbox{}
	r, err := SetupRouter(cfg, NewServices(cfg, db, nil, box))
	require.NoError(t, err)
	return &testApp{router: r, db: db, outbox: box}
}

// browser replays cookies between requests like a real client.
type browser struct {
	app     *testApp
	cookies map[string]*http.Cookie
}

func (a *testApp) browser() *browser {
	return &browser{app: a, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.app.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, path, nil)
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, path, form)
}

func (b *browser) register(t *testing.T, username, email, password string) {
	t.Helper()
	w := b.post("/register", url.Values{
		"username":         {username},
		"email":            {email},
		"password":         {password},
		"confirm_password": {password},
	})
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	require.Equal(t, "/login", w.Header().Get("Location"))
}

func (b *browser) login(t *testing.T, email, password string) {
	t.Helper()
	w := b.post("/login", url.Values{"email": {email}, "password": {password}})
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	require.Contains(t, b.cookies, "session")
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	w := app.browser().get("/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, map[string]interface{}{"status": "ok"}, body.Data)
}

func TestRegisterThenDuplicate(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "alice", "a@x.com", "password")

	w := b.get("/login")
	assert.Contains(t, w.Body.String(), "Your account has been created! You are now able to log in")

	w = b.post("/register", url.Values{
		"username":         {"alice"},
		"email":            {"b@y.com"},
		"password":         {"password"},
		"confirm_password": {"password"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "That username is taken. Please choose a different one.")

	var count int64
	require.NoError(t, app.db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRegisterFormValidation(t *testing.T) {
	app := newTestApp(t)
	w := app.browser().post("/register", url.Values{
		"username":         {"a"},
		"email":            {"not-an-email"},
		"password":         {"one"},
		"confirm_password": {"two"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Field must be at least 2 characters long.")
	assert.Contains(t, body, "Invalid email address.")
	assert.Contains(t, body, "Field must be equal to password.")
}

func TestLoginWrongPasswordStaysAnonymous(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "alice", "a@x.com", "password")

	w := b.post("/login", url.Values{"email": {"a@x.com"}, "password": {"nope"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Login failed. Please check email and password.")
	assert.NotContains(t, b.cookies, "session")

	w = b.get("/account")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestFailedLoginFlashShownOnce(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "alice", "a@x.com", "password")
	b.get("/login")

	w := b.post("/login", url.Values{"email": {"a@x.com"}, "password": {"nope"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, strings.Count(w.Body.String(), "Login failed. Please check email and password."))
	assert.NotContains(t, b.cookies, "flash")

	w = b.get("/about")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Login failed")
}

func TestLoginRequiredRedirectsWithNext(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "alice", "a@x.com", "password")

	w := b.get("/account")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Faccount", w.Header().Get("Location"))

	w = b.get("/login?next=%2Faccount")
	assert.Contains(t, w.Body.String(), "Please log in to access this page.")

	w = b.post("/login?next=%2Faccount", url.Values{"email": {"a@x.com"}, "password": {"password"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/account", w.Header().Get("Location"))

	w = b.get("/account")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a@x.com")

	// logged-in users are sent away from the login page
	w = b.get("/login")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/home", w.Header().Get("Location"))
}

func TestLoginIgnoresForeignNext(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "alice", "a@x.com", "password")

	w := b.post("/login?next=%2F%2Fevil.example", url.Values{"email": {"a@x.com"}, "password": {"password"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/home", w.Header().Get("Location"))
}

func TestRememberMeSetsPersistentCookie(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "alice", "a@x.com", "password")

	w := b.post("/login", url.Values{"email": {"a@x.com"}, "password": {"password"}, "remember": {"y"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Greater(t, b.cookies["session"].MaxAge, 0)

	other := app.browser()
	other.login(t, "a@x.com", "password")
	assert.Equal(t, 0, other.cookies["session"].MaxAge)
}

func TestLogoutRevokesSession(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "alice", "a@x.com", "password")
	b.login(t, "a@x.com", "password")
	stolen := *b.cookies["session"]

	w := b.get("/logout")
	require.Equal(t, http.StatusFound, w.Code)
	assert.NotContains(t, b.cookies, "session")

	replay := app.browser()
	replay.cookies["session"] = &stolen
	w = replay.get("/account")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestPostLifecycleAndOwnership(t *testing.T) {
	app := newTestApp(t)
	alice := app.browser()
	alice.register(t, "alice", "a@x.com", "password")
	alice.login(t, "a@x.com", "password")
	bob := app.browser()
	bob.register(t, "bob", "b@x.com", "password")
	bob.login(t, "b@x.com", "password")

	w := alice.post("/post/new", url.Values{"title": {"First"}, "content": {"Hello <script>alert(1)</script> world"}})
	require.Equal(t, http.StatusFound, w.Code)

	var post models.Post
	require.NoError(t, app.db.First(&post).Error)

	w = alice.get("/post/" + itoa(post.ID))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "First")
	assert.Contains(t, body, "/update")
	assert.NotContains(t, body, "<script>alert(1)</script>")

	w = bob.get("/post/" + itoa(post.ID) + "/update")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = bob.post("/post/"+itoa(post.ID)+"/update", url.Values{"title": {""}, "content": {""}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = bob.post("/post/"+itoa(post.ID)+"/delete", url.Values{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = alice.post("/post/"+itoa(post.ID)+"/update", url.Values{"title": {"Edited"}, "content": {"changed"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/post/"+itoa(post.ID), w.Header().Get("Location"))

	w = alice.get("/user/alice")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Edited")

	w = alice.post("/post/"+itoa(post.ID)+"/delete", url.Values{})
	require.Equal(t, http.StatusFound, w.Code)
	w = alice.get("/post/" + itoa(post.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHomePaginates(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "alice", "a@x.com", "password")
	b.login(t, "a@x.com", "password")
	for _, title := range []string{"one", "two", "three"} {
		require.Equal(t, http.StatusFound, b.post("/post/new", url.Values{"title": {title}, "content": {"x"}}).Code)
	}

	w := b.get("/home")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "?page=2")

	w = b.get("/home?page=9")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotFoundPages(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	assert.Equal(t, http.StatusNotFound, b.get("/post/999").Code)
	assert.Equal(t, http.StatusNotFound, b.get("/post/abc").Code)
	assert.Equal(t, http.StatusNotFound, b.get("/user/nobody").Code)

	w := b.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page Not Found")
}

func TestPasswordResetFlow(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.register(t, "alice", "a@x.com", "password")

	w := b.post("/reset_password", url.Values{"email": {"nobody@x.com"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "There is no account with that email. You must register first.")

	w = b.post("/reset_password", url.Values{"email": {"a@x.com"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	path := app.outbox.resetPath(t)

	w = b.get("/reset_password/garbage")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/reset_password", w.Header().Get("Location"))
	w = b.get("/reset_password")
	assert.Contains(t, w.Body.String(), "That is an invalid or expired token")

	w = b.get(path)
	require.Equal(t, http.StatusOK, w.Code)

	w = b.post(path, url.Values{"password": {"fresh-pass"}, "confirm_password": {"fresh-pass"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	b.login(t, "a@x.com", "fresh-pass")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
