package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/upstream"
)

// newReverseProxy forwards /api/* to the backend's versioned API
func (s *Server) newReverseProxy() *httputil.ReverseProxy {
	target := s.upstreamURL

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: s.config.Upstream.Timeout,
	}

	return &httputil.ReverseProxy{
		Transport: transport,
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
		},
		ModifyResponse: func(resp *http.Response) error {
			// The browser session and CORS policy are owned here, never by the backend
			resp.Header.Del("Set-Cookie")
			resp.Header.Del("Access-Control-Allow-Origin")
			resp.Header.Del("Access-Control-Allow-Credentials")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("API proxy error")
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"Upstream unavailable"}`))
		},
	}
}

// proxyAPI rewrites /api/<path> to /api/v1/<path> and swaps the browser
// cookie for the session's bearer token
func (s *Server) proxyAPI(proxy *httputil.ReverseProxy) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionData, ok := GetSessionData(c)
		if !ok {
			respondWithError(c, s.logger, http.StatusUnauthorized, ErrNoSession, "Unauthorized")
			return
		}

		// ReverseProxy falls back to CloseNotifier when the context cannot be
		// cancelled, which gin's writer only supports over a real connection
		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		req := c.Request.Clone(ctx)
		req.URL.Path = upstream.APIPrefix + c.Param("path")
		req.URL.RawPath = ""
		req.Header.Del("Cookie")
		req.Header.Set("Authorization", "Bearer "+sessionData.AccessToken)

		proxy.ServeHTTP(c.Writer, req)
	}
}
