package server

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/articlepdf/internal/common/httputil"
	"github.com/edgecomet/articlepdf/internal/common/requestid"
	"github.com/edgecomet/articlepdf/internal/common/urlmatch"
	"github.com/edgecomet/articlepdf/internal/pdf/cache"
	"github.com/edgecomet/articlepdf/internal/pdf/resolver"
	"github.com/edgecomet/articlepdf/pkg/types"
)

// API paths
const (
	PathPdf    = "/pdf"
	PathQueue  = "/queue"
	PathStats  = "/stats"
	PathPurge  = "/purge"
	PathHealth = "/health"
)

const (
	headerAuthToken = "X-Auth-Token"
	headerRequestID = "X-Request-ID"
)

// Server is the public HTTP API of the PDF service. All endpoints except
// the health check require the shared auth token.
type Server struct {
	authToken    string
	resolver     *resolver.Resolver
	store        *cache.Store
	allowedHosts *urlmatch.Matcher
	maxAge       time.Duration
	logger       *zap.Logger
	metrics      *ServerMetrics

	server   *fasthttp.Server
	listener net.Listener
	address  string
}

// NewServer creates the API server. maxAge is the default retention window
// used when a purge request does not name one.
func NewServer(
	authToken string,
	res *resolver.Resolver,
	store *cache.Store,
	allowedHosts *urlmatch.Matcher,
	maxAge time.Duration,
	timeout time.Duration,
	logger *zap.Logger,
	metrics *ServerMetrics,
) *Server {
	s := &Server{
		authToken:    authToken,
		resolver:     res,
		store:        store,
		allowedHosts: allowedHosts,
		maxAge:       maxAge,
		logger:       logger,
		metrics:      metrics,
	}

	s.server = &fasthttp.Server{
		Handler:            s.Handler(),
		Name:               "ArticlePDF",
		ReadTimeout:        timeout,
		WriteTimeout:       timeout,
		MaxRequestBodySize: 1 << 20,
	}

	return s
}

// Start begins accepting HTTP requests on the given address. Blocks until
// the listener is closed.
func (s *Server) Start(address string) error {
	s.address = address

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.listener = listener

	s.logger.Info("API server started", zap.String("address", address))
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.server.ShutdownWithContext(ctx)
}

// GetAddress returns the address the server is listening on.
func (s *Server) GetAddress() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.address
}

// Handler returns the fasthttp request handler with routing, auth and
// request ID assignment applied.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		requestID := requestid.GenerateRequestID(string(ctx.Request.Header.Peek(headerRequestID)))
		ctx.Response.Header.Set(headerRequestID, requestID)

		method := string(ctx.Method())
		path := string(ctx.Path())

		// Health is unauthenticated so load balancers can probe it.
		if path == PathHealth && method == fasthttp.MethodGet {
			s.handleHealth(ctx)
			return
		}

		if !s.authenticate(ctx) {
			return
		}

		logger := s.logger.With(zap.String("request_id", requestID))

		switch {
		case path == PathPdf && method == fasthttp.MethodPost:
			s.instrument(ctx, "pdf", logger, s.handlePdf)
		case path == PathQueue && method == fasthttp.MethodPost:
			s.instrument(ctx, "queue", logger, s.handleQueue)
		case path == PathStats && method == fasthttp.MethodGet:
			s.instrument(ctx, "stats", logger, s.handleStats)
		case path == PathPurge && method == fasthttp.MethodPost:
			s.instrument(ctx, "purge", logger, s.handlePurge)
		case path == PathPdf || path == PathQueue || path == PathStats || path == PathPurge:
			httputil.JSONError(ctx, "method not allowed", fasthttp.StatusMethodNotAllowed)
		default:
			httputil.JSONError(ctx, "not found", fasthttp.StatusNotFound)
		}
	}
}

// instrument wraps a handler with duration and outcome metrics.
func (s *Server) instrument(ctx *fasthttp.RequestCtx, endpoint string, logger *zap.Logger, handler func(*fasthttp.RequestCtx, *zap.Logger)) {
	startTime := time.Now().UTC()
	handler(ctx, logger)

	status := "success"
	if ctx.Response.StatusCode() >= fasthttp.StatusBadRequest {
		status = "failure"
	}
	s.metrics.RecordRequest(endpoint, status)
	s.metrics.RecordDuration(endpoint, time.Since(startTime).Seconds())
}

// authenticate validates the shared token, accepting it from the
// X-Auth-Token header or the auth_token query parameter.
func (s *Server) authenticate(ctx *fasthttp.RequestCtx) bool {
	token := string(ctx.Request.Header.Peek(headerAuthToken))
	if token == "" {
		token = string(ctx.QueryArgs().Peek("auth_token"))
	}

	if token == "" {
		s.logger.Warn("Missing auth token",
			zap.String("remote_addr", ctx.RemoteAddr().String()),
			zap.String("path", string(ctx.Path())))
		httputil.JSONError(ctx, "unauthorized", fasthttp.StatusUnauthorized)
		return false
	}

	if token != s.authToken {
		s.logger.Warn("Invalid auth token",
			zap.String("remote_addr", ctx.RemoteAddr().String()),
			zap.String("path", string(ctx.Path())))
		httputil.JSONError(ctx, "unauthorized", fasthttp.StatusUnauthorized)
		return false
	}

	return true
}

// validateArticleURL checks the article_url field shared by several request
// bodies.
func validateArticleURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("article_url is required")
	}
	if !isHTTPURL(rawURL) {
		return fmt.Errorf("article_url must be an absolute http(s) URL")
	}
	return nil
}

func isHTTPURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validDevice(device types.DeviceType) bool {
	return device.Valid() && device != types.DeviceUnknown
}
