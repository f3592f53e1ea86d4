package server

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/preferences"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templateFuncs = template.FuncMap{
	"money": func(amount float64, currency string) string {
		return fmt.Sprintf("%s %.2f", currency, amount)
	},
	"display": func(v any) string {
		switch t := v.(type) {
		case nil:
			return ""
		case string:
			return t
		case float64:
			if t == float64(int64(t)) {
				return fmt.Sprintf("%d", int64(t))
			}
			return fmt.Sprintf("%.2f", t)
		case bool:
			if t {
				return "yes"
			}
			return "no"
		default:
			b, err := json.Marshal(t)
			if err != nil {
				return fmt.Sprint(t)
			}
			return string(b)
		}
	},
	"humanize": func(key string) string {
		key = strings.ReplaceAll(key, "_", " ")
		if key == "" {
			return key
		}
		return strings.ToUpper(key[:1]) + key[1:]
	},
	"active": func(current, prefix string) bool {
		return current == prefix || strings.HasPrefix(current, prefix+"/")
	},
}

func (s *Server) loadTemplates() error {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.router.SetHTMLTemplate(tmpl)
	return nil
}

// render executes page with the layout data every page needs: the session,
// current preferences and request path
func (s *Server) render(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}

	data["Prefs"] = preferences.Values(s.preferenceStore(c))
	data["Path"] = c.Request.URL.Path
	data["Version"] = s.version
	if sessionData, ok := GetSessionData(c); ok {
		data["Session"] = sessionData
	}

	c.HTML(status, page, data)
}
