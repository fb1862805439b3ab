package utils

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	flashCookie     = "flash"
	flashCtxKey     = "flashes"
	flashWrittenKey = "flash_written"
)

// Flash is a one-shot notice shown on the next rendered page. Category is a bootstrap
// alert class: success, info, warning, danger.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// AddFlash queues a notice for the next page rendered for this browser.
func AddFlash(c *gin.Context, category, message string) {
	flashes := append(loadFlashes(c), Flash{Category: category, Message: message})
	c.Set(flashCtxKey, flashes)
	b, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	dropPendingFlashCookie(c)
	setFlashCookie(c, base64.RawURLEncoding.EncodeToString(b), 0)
	c.Set(flashWrittenKey, true)
}

// PopFlashes returns queued notices and clears them, including any cookie
// queued earlier in this same response.
func PopFlashes(c *gin.Context) []Flash {
	flashes := loadFlashes(c)
	c.Set(flashCtxKey, []Flash{})
	if c.GetBool(flashWrittenKey) {
		dropPendingFlashCookie(c)
		c.Set(flashWrittenKey, false)
	}
	if _, err := c.Cookie(flashCookie); err == nil {
		setFlashCookie(c, "", -1)
	}
	return flashes
}

// dropPendingFlashCookie removes flash Set-Cookie headers not yet sent.
func dropPendingFlashCookie(c *gin.Context) {
	h := c.Writer.Header()
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, flashCookie+"=") {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
}

func loadFlashes(c *gin.Context) []Flash {
	if v, ok := c.Get(flashCtxKey); ok {
		if flashes, ok := v.([]Flash); ok {
			return flashes
		}
	}
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return nil
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(b, &flashes); err != nil {
		return nil
	}
	return flashes
}

func setFlashCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, value, maxAge, "/", "", false, true)
}
