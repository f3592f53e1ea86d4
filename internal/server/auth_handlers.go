package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/routegate"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/upstream"
)

const (
	msgVerifyEmail     = "Please verify your email address. We sent a verification link to your inbox."
	msgVerifyPhone     = "Please verify your phone number to finish signing in."
	msgAccountCreated  = "Account created. Check your inbox for a verification link."
	msgResetLinkSent   = "If an account exists for that email, a reset link is on its way."
	msgPasswordUpdated = "Your password has been updated. Please log in."
	msgEmailVerified   = "Your email address is verified. Please log in."
	msgSignedOut       = "You have been signed out."
)

// LoginForm represents the login form
type LoginForm struct {
	Email       string `form:"email" binding:"required,email"`
	Password    string `form:"password" binding:"required"`
	CallbackURL string `form:"callbackUrl"`
}

// RegisterForm represents the registration form
type RegisterForm struct {
	Email             string `form:"email" binding:"required,email"`
	Password          string `form:"password" binding:"required,min=8"`
	ConfirmPassword   string `form:"confirm_password" binding:"required,eqfield=Password"`
	DisplayName       string `form:"display_name" binding:"max=100"`
	Phone             string `form:"phone" binding:"omitempty,e164"`
	PreferredCurrency string `form:"preferred_currency" binding:"omitempty,len=3,alpha"`
}

// ForgotPasswordForm represents the forgot password form
type ForgotPasswordForm struct {
	Email string `form:"email" binding:"required,email"`
}

// ResetPasswordForm represents the reset password form
type ResetPasswordForm struct {
	Token           string `form:"token" binding:"required"`
	Password        string `form:"password" binding:"required,min=8"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

func (s *Server) loginPage(c *gin.Context) {
	s.render(c, http.StatusOK, "login", gin.H{
		"Title":       "Log in",
		"Error":       c.Query("error"),
		"Message":     c.Query("message"),
		"Email":       c.Query("email"),
		"CallbackURL": c.Query(routegate.CallbackParam),
	})
}

func (s *Server) login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		s.redirectWith(c, "/login", url.Values{
			"error":                 {validationMessage(err)},
			"email":                 {form.Email},
			routegate.CallbackParam: {form.CallbackURL},
		})
		return
	}

	resp, err := s.upstream.Login(c.Request.Context(), strings.TrimSpace(form.Email), form.Password)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Login failed")
		s.redirectWith(c, "/login", url.Values{
			"error":                 {upstream.UserMessage(err)},
			"email":                 {form.Email},
			routegate.CallbackParam: {form.CallbackURL},
		})
		return
	}

	if !resp.TokensIssued() {
		s.redirectWith(c, "/login", url.Values{
			"message":               {nextActionMessage(resp)},
			"email":                 {form.Email},
			routegate.CallbackParam: {form.CallbackURL},
		})
		return
	}

	sessionData, err := s.resolver.Establish(c.Request.Context(), resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to establish session")
		s.redirectWith(c, "/login", url.Values{"error": {upstream.UserMessage(err)}})
		return
	}

	s.logger.Info().Str("user_id", sessionData.UserID).Str("role", sessionData.Role).Msg("User logged in")

	target := s.safeCallback(c, form.CallbackURL)
	if target == "" {
		target = s.gate.Landing(sessionData)
	}
	c.Redirect(http.StatusSeeOther, target)
}

func (s *Server) registerPage(c *gin.Context) {
	s.render(c, http.StatusOK, "register", gin.H{
		"Title": "Create account",
		"Error": c.Query("error"),
		"Email": c.Query("email"),
	})
}

func (s *Server) register(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		s.redirectWith(c, "/register", url.Values{"error": {validationMessage(err)}, "email": {form.Email}})
		return
	}

	resp, err := s.upstream.Register(c.Request.Context(), upstream.RegisterRequest{
		Email:             strings.TrimSpace(form.Email),
		Password:          form.Password,
		DisplayName:       strings.TrimSpace(form.DisplayName),
		Phone:             form.Phone,
		PreferredCurrency: strings.ToUpper(form.PreferredCurrency),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Registration failed")
		s.redirectWith(c, "/register", url.Values{"error": {upstream.UserMessage(err)}, "email": {form.Email}})
		return
	}

	if resp.TokensIssued() {
		sessionData, err := s.resolver.Establish(c.Request.Context(), resp)
		if err == nil {
			c.Redirect(http.StatusSeeOther, s.gate.Landing(sessionData))
			return
		}
		s.logger.Error().Err(err).Msg("Failed to establish session after registration")
	}

	message := msgAccountCreated
	if resp.Action == upstream.ActionVerifyPhone {
		message = msgVerifyPhone
	}
	s.redirectWith(c, "/login", url.Values{"message": {message}, "email": {form.Email}})
}

func (s *Server) logout(c *gin.Context) {
	if sessionData, ok := GetSessionData(c); ok && sessionData.RefreshToken != "" {
		if err := s.upstream.Revoke(c.Request.Context(), sessionData.RefreshToken); err != nil {
			s.logger.Warn().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to revoke refresh token")
		}
	}

	if err := s.resolver.Destroy(c.Request.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to destroy session")
	}

	s.redirectWith(c, "/login", url.Values{"message": {msgSignedOut}})
}

func (s *Server) forgotPasswordPage(c *gin.Context) {
	data := gin.H{
		"Title": "Forgot password",
		"Error": c.Query("error"),
	}
	if c.Query("sent") != "" {
		data["Message"] = msgResetLinkSent
	}
	s.render(c, http.StatusOK, "forgot_password", data)
}

func (s *Server) forgotPassword(c *gin.Context) {
	var form ForgotPasswordForm
	if err := c.ShouldBind(&form); err != nil {
		s.redirectWith(c, "/forgot-password", url.Values{"error": {validationMessage(err)}})
		return
	}

	if err := s.upstream.ForgotPassword(c.Request.Context(), strings.TrimSpace(form.Email)); err != nil {
		s.logger.Warn().Err(err).Msg("Forgot password request failed")
		s.redirectWith(c, "/forgot-password", url.Values{"error": {upstream.UserMessage(err)}})
		return
	}

	s.redirectWith(c, "/forgot-password", url.Values{"sent": {"1"}})
}

func (s *Server) resetPasswordPage(c *gin.Context) {
	token := c.Query("token")
	if err := s.requireToken(token); err != nil {
		s.render(c, http.StatusBadRequest, "reset_password", gin.H{
			"Title": "Reset password",
			"Error": "This reset link is missing or malformed. Please request a new one.",
		})
		return
	}

	data := gin.H{
		"Title": "Reset password",
		"Token": token,
		"Error": c.Query("error"),
	}

	valid, err := s.upstream.ValidateResetToken(c.Request.Context(), token)
	switch {
	case err != nil:
		data["Error"] = upstream.UserMessage(err)
	case !valid:
		data["Error"] = "This reset link is invalid or has expired. Please request a new one."
		data["Token"] = ""
	}

	s.render(c, http.StatusOK, "reset_password", data)
}

func (s *Server) resetPassword(c *gin.Context) {
	var form ResetPasswordForm
	if err := c.ShouldBind(&form); err != nil {
		s.redirectWith(c, "/reset-password", url.Values{"token": {form.Token}, "error": {validationMessage(err)}})
		return
	}
	if err := s.requireToken(form.Token); err != nil {
		s.redirectWith(c, "/forgot-password", url.Values{"error": {"This reset link is missing or malformed. Please request a new one."}})
		return
	}

	if err := s.upstream.ResetPassword(c.Request.Context(), form.Token, form.Password); err != nil {
		s.logger.Warn().Err(err).Msg("Password reset failed")
		s.redirectWith(c, "/reset-password", url.Values{"token": {form.Token}, "error": {upstream.UserMessage(err)}})
		return
	}

	s.redirectWith(c, "/login", url.Values{"message": {msgPasswordUpdated}})
}

func (s *Server) verifyEmail(c *gin.Context) {
	token := c.Query("token")
	if err := s.requireToken(token); err != nil {
		s.render(c, http.StatusBadRequest, "verify_email", gin.H{
			"Title": "Verify email",
			"Error": "This verification link is missing or malformed.",
		})
		return
	}

	resp, err := s.upstream.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Email verification failed")
		s.render(c, http.StatusOK, "verify_email", gin.H{
			"Title": "Verify email",
			"Error": upstream.UserMessage(err),
		})
		return
	}

	if resp.TokensIssued() {
		sessionData, err := s.resolver.Establish(c.Request.Context(), resp)
		if err == nil {
			c.Redirect(http.StatusSeeOther, s.gate.Landing(sessionData))
			return
		}
		s.logger.Error().Err(err).Msg("Failed to establish session after verification")
	}

	s.redirectWith(c, "/login", url.Values{"message": {msgEmailVerified}})
}

// nextActionMessage explains a login that did not issue tokens
func nextActionMessage(resp *upstream.AuthResponse) string {
	if resp.Message != "" {
		return resp.Message
	}
	switch resp.Action {
	case upstream.ActionVerifyPhone:
		return msgVerifyPhone
	default:
		return msgVerifyEmail
	}
}

// redirectWith redirects to path with non-empty params
func (s *Server) redirectWith(c *gin.Context, path string, params url.Values) {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	target := path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	c.Redirect(http.StatusSeeOther, target)
}

// safeCallback returns a same-origin path for raw, or "" when raw is empty,
// foreign or points back into the auth pages
func (s *Server) safeCallback(c *gin.Context, raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	if u.IsAbs() || u.Host != "" {
		origin, err := url.Parse(s.origin(c))
		if err != nil || u.Scheme != origin.Scheme || u.Host != origin.Host {
			return ""
		}
	}

	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return ""
	}
	if s.gate.Table().IsPublicAuth(u.Path) {
		return ""
	}

	target := u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}
