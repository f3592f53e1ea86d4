package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/preferences"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/upstream"
)

// SetPreferenceRequest represents a preference update
type SetPreferenceRequest struct {
	Value string `json:"value" binding:"required"`
}

// SettingsForm represents the settings page form. Empty fields are left
// unchanged.
type SettingsForm struct {
	Theme        string `form:"theme"`
	ThemeVariant string `form:"theme_variant"`
	Layout       string `form:"layout"`
}

func (s *Server) preferenceStore(c *gin.Context) *preferences.CookieStore {
	return preferences.NewCookieStore(c, s.config.Session.CookieSecure)
}

func (s *Server) getPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, preferences.Values(s.preferenceStore(c)))
}

func (s *Server) setPreference(c *gin.Context) {
	kind := c.Param("kind")
	pref, ok := preferences.Lookup(kind)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown preference: " + kind})
		return
	}

	var req SetPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := pref.Set(s.preferenceStore(c), req.Value); err != nil {
		var verr *preferences.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "allowed": verr.Allowed})
			return
		}
		s.logger.Error().Err(err).Str("kind", kind).Msg("Failed to set preference")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save preference"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"kind": pref.Kind, "value": req.Value})
}

func (s *Server) settingsPage(c *gin.Context) {
	s.renderSettings(c, http.StatusOK, c.Query("error"), c.Query("message"))
}

func (s *Server) updateSettings(c *gin.Context) {
	var form SettingsForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderSettings(c, http.StatusBadRequest, validationMessage(err), "")
		return
	}

	store := s.preferenceStore(c)
	updates := []struct {
		pref  *preferences.Preference
		value string
	}{
		{preferences.Theme, form.Theme},
		{preferences.ThemeVariant, form.ThemeVariant},
		{preferences.Layout, form.Layout},
	}

	// Validate everything first so a bad field leaves all cookies untouched
	for _, u := range updates {
		if u.value == "" {
			continue
		}
		if err := u.pref.Validate(u.value); err != nil {
			s.renderSettings(c, http.StatusBadRequest, err.Error(), "")
			return
		}
	}
	for _, u := range updates {
		if u.value == "" {
			continue
		}
		if err := u.pref.Set(store, u.value); err != nil {
			s.renderSettings(c, http.StatusBadRequest, err.Error(), "")
			return
		}
	}

	s.redirectWith(c, "/settings", url.Values{"message": {"Preferences saved."}})
}

func (s *Server) renderSettings(c *gin.Context, status int, errMsg, message string) {
	data := gin.H{
		"Title":       "Settings",
		"Error":       errMsg,
		"Message":     message,
		"Preferences": preferences.All(),
	}

	currencies, err := s.upstream.Currencies(c.Request.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load currencies")
		if errMsg == "" {
			data["Error"] = upstream.UserMessage(err)
		}
	}
	data["Currencies"] = currencies

	s.render(c, status, "settings", data)
}
