package templates

import (
	"embed"
	"html/template"
	"time"

	"github.com/cppla/blog/models"
	"github.com/cppla/blog/utils"
)

//go:embed *.html
var files embed.FS

// FuncMap holds the helpers available to every page. defaultPicture stands in
// for users without a picture; empty selects default.jpg.
func FuncMap(defaultPicture string) template.FuncMap {
	if defaultPicture == "" {
		defaultPicture = models.DefaultImageFile
	}
	return template.FuncMap{
		"safe": utils.SafeHTML,
		"date": func(t time.Time) string { return t.UTC().Format("2006-01-02") },
		"picture": func(file string) string {
			if file == "" {
				file = defaultPicture
			}
			return "/static/profile_pics/" + file
		},
		"pager": func(page interface{}, base string) map[string]interface{} {
			return map[string]interface{}{"page": page, "base": base}
		},
	}
}

// Load parses every embedded page. Each page is addressed by its file name.
func Load(defaultPicture string) (*template.Template, error) {
	return template.New("").Funcs(FuncMap(defaultPicture)).ParseFS(files, "*.html")
}
