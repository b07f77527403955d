// Package davserver serves a directory over WebDAV. It is the local target
// for development and the stub server the storage tests run against.
package davserver

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/webdav"
)

type Server struct {
	handler    *webdav.Handler
	authUser   string
	authPass   string
	authEnable bool
	logger     *slog.Logger
}

// NewServer wraps fs in a WebDAV handler mounted at prefix. Basic auth is
// enforced only when both user and pass are set.
func NewServer(prefix string, fs webdav.FileSystem, authUser, authPass string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handler: &webdav.Handler{
			Prefix:     prefix,
			FileSystem: fs,
			LockSystem: webdav.NewMemLS(),
			Logger: func(r *http.Request, err error) {
				if err != nil {
					logger.Warn("webdav error", "method", r.Method, "path", r.URL.Path, "err", err)
				}
			},
		},
		authUser:   authUser,
		authPass:   authPass,
		authEnable: authUser != "" && authPass != "",
		logger:     logger,
	}
}

// NewDirServer serves root, creating it if needed.
func NewDirServer(prefix, root, authUser, authPass string, logger *slog.Logger) (*Server, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create webdav root: %w", err)
	}
	return NewServer(prefix, webdav.Dir(root), authUser, authPass, logger), nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	user, pass, _ := r.BasicAuth()
	if !s.authenticate(user, pass) {
		sw.Header().Set("WWW-Authenticate", `Basic realm="davstore"`)
		http.Error(sw, "Unauthorized", http.StatusUnauthorized)
	} else {
		s.handler.ServeHTTP(sw, r)
	}

	s.logger.Info("http",
		"method", r.Method,
		"path", r.URL.Path,
		"status", sw.status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (s *Server) authenticate(username, password string) bool {
	if !s.authEnable {
		return true
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.authUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.authPass)) == 1
	return userOK && passOK
}
