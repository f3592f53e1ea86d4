package routegate

import (
	"net/url"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/auth"
)

// Action is the outcome of a gate decision
type Action int

const (
	Allow Action = iota
	RedirectToLogin
	RedirectToDefault
)

func (a Action) String() string {
	switch a {
	case RedirectToLogin:
		return "redirect-to-login"
	case RedirectToDefault:
		return "redirect-to-default"
	default:
		return "allow"
	}
}

// DefaultLoginPath is where unauthenticated users are sent
const DefaultLoginPath = "/login"

// CallbackParam carries the originally requested URL to the login page
const CallbackParam = "callbackUrl"

// Request is the part of an inbound request the gate looks at
type Request struct {
	Origin   string // scheme://host without trailing slash
	Path     string
	RawQuery string
}

// URL returns the absolute originally requested URL
func (r Request) URL() string {
	u := r.Origin + r.Path
	if r.RawQuery != "" {
		u += "?" + r.RawQuery
	}
	return u
}

// Decision is the gate's verdict for one request
type Decision struct {
	Action   Action
	Class    Class
	Location string // absolute redirect target, empty for Allow
}

// LandingFunc resolves the default landing path for a session
type LandingFunc func(*auth.SessionData) string

// DefaultLanding sends admins to the admin dashboard and everyone else to the
// user dashboard.
func DefaultLanding(s *auth.SessionData) string {
	if s.IsAdmin() {
		return "/admin/dashboard"
	}
	return "/dashboard"
}

// Gate combines a route table with session state into a redirect decision
type Gate struct {
	table     *Table
	landing   LandingFunc
	loginPath string
}

// New creates a gate. A nil landing uses DefaultLanding.
func New(table *Table, landing LandingFunc) *Gate {
	if landing == nil {
		landing = DefaultLanding
	}
	return &Gate{
		table:     table,
		landing:   landing,
		loginPath: DefaultLoginPath,
	}
}

// Table returns the route table the gate was built with
func (g *Gate) Table() *Table {
	return g.table
}

// Landing returns the default landing path for session
func (g *Gate) Landing(session *auth.SessionData) string {
	return g.landing(session)
}

// Decide evaluates a request. Checks run in a fixed order: missing session on
// protected or admin paths, then authenticated users on public auth pages,
// then authenticated users without the admin role on admin paths.
func (g *Gate) Decide(req Request, session *auth.SessionData) Decision {
	class := g.table.Classify(req.Path)
	d := Decision{Action: Allow, Class: class}

	switch {
	case session == nil && (class == ClassProtected || class == ClassAdmin):
		d.Action = RedirectToLogin
		d.Location = g.LoginURL(req.Origin, req.URL())
	case session != nil && class == ClassPublicAuth:
		d.Action = RedirectToDefault
		d.Location = req.Origin + g.landing(session)
	case session != nil && class == ClassAdmin && !session.IsAdmin():
		d.Action = RedirectToDefault
		d.Location = req.Origin + g.landing(session)
	}

	return d
}

// LoginURL builds the login redirect with callback
func (g *Gate) LoginURL(origin, callback string) string {
	q := url.Values{}
	q.Set(CallbackParam, callback)
	return origin + g.loginPath + "?" + q.Encode()
}
