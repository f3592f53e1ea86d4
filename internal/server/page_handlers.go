package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/routegate"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/upstream"
)

func (s *Server) index(c *gin.Context) {
	if sessionData, ok := GetSessionData(c); ok {
		c.Redirect(http.StatusTemporaryRedirect, s.gate.Landing(sessionData))
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, routegate.DefaultLoginPath)
}

// accessToken returns the upstream bearer token of the gated session
func accessToken(c *gin.Context) string {
	if sessionData, ok := GetSessionData(c); ok {
		return sessionData.AccessToken
	}
	return ""
}

// upstreamRejected handles a 401 from the backend on a page load by dropping
// the session and sending the user to log in again. It reports whether the
// response has been written.
func (s *Server) upstreamRejected(c *gin.Context, err error) bool {
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) || !apiErr.Unauthorized() {
		return false
	}

	s.logger.Info().Str("path", c.Request.URL.Path).Msg("Upstream rejected access token, ending session")
	if err := s.resolver.Destroy(c.Request.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to destroy session")
	}

	origin := s.origin(c)
	callback := routegate.Request{Origin: origin, Path: c.Request.URL.Path, RawQuery: c.Request.URL.RawQuery}.URL()
	c.Redirect(http.StatusSeeOther, s.gate.LoginURL(origin, callback))
	return true
}

func (s *Server) pageError(c *gin.Context, err error, what string) string {
	s.logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msgf("Failed to load %s", what)
	return upstream.UserMessage(err)
}

func (s *Server) dashboardPage(c *gin.Context) {
	data := gin.H{"Title": "Dashboard"}

	stats, err := s.upstream.DashboardStats(c.Request.Context(), accessToken(c))
	if err != nil {
		if s.upstreamRejected(c, err) {
			return
		}
		data["Error"] = s.pageError(c, err, "dashboard")
	}
	data["Stats"] = stats

	s.render(c, http.StatusOK, "dashboard", data)
}

func (s *Server) groupsPage(c *gin.Context) {
	data := gin.H{"Title": "Groups"}

	groups, err := s.upstream.ListGroups(c.Request.Context(), accessToken(c))
	if err != nil {
		if s.upstreamRejected(c, err) {
			return
		}
		data["Error"] = s.pageError(c, err, "groups")
	} else {
		data["Groups"] = groups.Items
	}

	s.render(c, http.StatusOK, "groups", data)
}

func (s *Server) groupPage(c *gin.Context) {
	data := gin.H{"Title": "Group"}

	group, err := s.upstream.GetGroup(c.Request.Context(), accessToken(c), c.Param("id"))
	if err != nil {
		if s.upstreamRejected(c, err) {
			return
		}
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusForbidden) {
			s.render(c, http.StatusNotFound, "not_found", gin.H{"Title": "Not found"})
			return
		}
		data["Error"] = s.pageError(c, err, "group")
	} else {
		if name, ok := group["name"].(string); ok && name != "" {
			data["Title"] = name
		}
	}
	data["Group"] = group

	s.render(c, http.StatusOK, "group", data)
}

func (s *Server) expensesPage(c *gin.Context) {
	page := pageParam(c)
	data := gin.H{"Title": "Expenses", "Page": page}

	expenses, err := s.upstream.ListExpenses(c.Request.Context(), accessToken(c), page)
	if err != nil {
		if s.upstreamRejected(c, err) {
			return
		}
		data["Error"] = s.pageError(c, err, "expenses")
	} else {
		data["Expenses"] = expenses.Items
		data["Pager"] = newPager(expenses.Page, expenses.TotalPages, expenses.Total)
	}

	s.render(c, http.StatusOK, "expenses", data)
}

func (s *Server) settlementsPage(c *gin.Context) {
	page := pageParam(c)
	data := gin.H{"Title": "Settlements", "Page": page}

	settlements, err := s.upstream.ListSettlements(c.Request.Context(), accessToken(c), page)
	if err != nil {
		if s.upstreamRejected(c, err) {
			return
		}
		data["Error"] = s.pageError(c, err, "settlements")
	} else {
		data["Settlements"] = settlements.Items
		data["Pager"] = newPager(settlements.Page, settlements.TotalPages, settlements.Total)
	}

	s.render(c, http.StatusOK, "settlements", data)
}

// notificationsPage lists pending group and friend invites. A failure of one
// source still renders the other.
func (s *Server) notificationsPage(c *gin.Context) {
	data := gin.H{"Title": "Notifications"}
	token := accessToken(c)

	groupInvites, err := s.upstream.IncomingGroupInvites(c.Request.Context(), token)
	if err != nil {
		if s.upstreamRejected(c, err) {
			return
		}
		data["Error"] = s.pageError(c, err, "group invites")
	}

	friendInvites, err := s.upstream.FriendInvites(c.Request.Context(), token)
	if err != nil {
		if s.upstreamRejected(c, err) {
			return
		}
		data["Error"] = s.pageError(c, err, "friend invites")
	}

	data["GroupInvites"] = groupInvites
	data["FriendInvites"] = friendInvites
	data["Count"] = len(groupInvites) + len(friendInvites)

	s.render(c, http.StatusOK, "notifications", data)
}

func (s *Server) adminDashboardPage(c *gin.Context) {
	data := gin.H{"Title": "Admin"}

	stats, err := s.upstream.AdminDashboard(c.Request.Context(), accessToken(c))
	if err != nil {
		if s.upstreamRejected(c, err) {
			return
		}
		data["Error"] = s.pageError(c, err, "admin dashboard")
	}
	data["Stats"] = stats

	s.render(c, http.StatusOK, "admin_dashboard", data)
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// pager drives previous/next links on listing pages
type pager struct {
	Page, TotalPages, Total int
}

func newPager(page, totalPages, total int) pager {
	if page < 1 {
		page = 1
	}
	return pager{Page: page, TotalPages: totalPages, Total: total}
}

func (p pager) HasPrev() bool { return p.Page > 1 }
func (p pager) HasNext() bool { return p.Page < p.TotalPages }
func (p pager) Prev() int     { return p.Page - 1 }
func (p pager) Next() int     { return p.Page + 1 }
