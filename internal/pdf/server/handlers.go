package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/articlepdf/internal/common/httputil"
	"github.com/edgecomet/articlepdf/pkg/types"
)

// generatePdfRequest is the body of POST /pdf.
type generatePdfRequest struct {
	ArticleURL string           `json:"article_url"`
	DeviceType types.DeviceType `json:"device_type"`
	Inline     bool             `json:"inline"`
}

// queueArticleRequest is the body of POST /queue.
type queueArticleRequest struct {
	ArticleURL string `json:"article_url"`
}

// purgeRequest is the body of POST /purge. A zero OlderThanDays falls back
// to the configured retention window.
type purgeRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

// handlePdf serves one PDF variant, rendering it on a cache miss. The
// response is the raw PDF with a Content-Disposition derived from the
// requested layout.
func (s *Server) handlePdf(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	var req generatePdfRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		httputil.JSONError(ctx, "invalid request body: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}

	if err := validateArticleURL(req.ArticleURL); err != nil {
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusBadRequest)
		return
	}
	if !s.allowedHosts.AllowsURL(req.ArticleURL) {
		logger.Warn("Article host not in allowlist", zap.String("url", req.ArticleURL))
		httputil.JSONError(ctx, "article host is not allowed", fasthttp.StatusForbidden)
		return
	}
	if !validDevice(req.DeviceType) {
		httputil.JSONError(ctx, "device_type must be mobile, tablet or desktop", fasthttp.StatusBadRequest)
		return
	}

	payload, err := s.resolver.GetOrGenerate(ctx, req.ArticleURL, req.DeviceType, req.Inline)
	if err != nil {
		logger.Error("PDF generation failed",
			zap.String("url", req.ArticleURL),
			zap.Error(err))

		var renderErr *types.RenderError
		if errors.As(err, &renderErr) && renderErr.Timeout {
			httputil.JSONError(ctx, "render timed out", fasthttp.StatusGatewayTimeout)
			return
		}
		httputil.JSONError(ctx, "failed to generate PDF", fasthttp.StatusBadGateway)
		return
	}

	disposition := "attachment"
	if req.Inline {
		disposition = "inline"
	}

	ctx.Response.Header.Set(fasthttp.HeaderContentDisposition,
		fmt.Sprintf("%s; filename=%s", disposition, pdfFileName(req.ArticleURL)))
	ctx.SetContentType("application/pdf")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(payload)
}

// handleQueue enqueues all six variants of an article for background
// enrichment. A URL that already has any stored rows is left untouched.
func (s *Server) handleQueue(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	var req queueArticleRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		httputil.JSONError(ctx, "invalid request body: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}

	if err := validateArticleURL(req.ArticleURL); err != nil {
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusBadRequest)
		return
	}
	if !s.allowedHosts.AllowsURL(req.ArticleURL) {
		logger.Warn("Article host not in allowlist", zap.String("url", req.ArticleURL))
		httputil.JSONError(ctx, "article host is not allowed", fasthttp.StatusForbidden)
		return
	}

	exists, err := s.store.ExistsByURL(ctx, req.ArticleURL)
	if err != nil {
		logger.Error("Queue lookup failed", zap.String("url", req.ArticleURL), zap.Error(err))
		httputil.JSONError(ctx, "storage error", fasthttp.StatusInternalServerError)
		return
	}

	if exists {
		logger.Debug("Article already known, not queueing",
			zap.String("url", req.ArticleURL))
		httputil.JSONSuccess(ctx, "already queued", fasthttp.StatusOK)
		return
	}

	if err := s.store.QueueAllVariants(ctx, req.ArticleURL); err != nil {
		logger.Error("Failed to queue article", zap.String("url", req.ArticleURL), zap.Error(err))
		httputil.JSONError(ctx, "storage error", fasthttp.StatusInternalServerError)
		return
	}

	logger.Info("Article queued for generation", zap.String("url", req.ArticleURL))
	httputil.JSONSuccess(ctx, "queued", fasthttp.StatusAccepted)
}

// statsResponse is the body of GET /stats.
type statsResponse struct {
	Rows  int64 `json:"rows"`
	Bytes int64 `json:"bytes"`
}

func (s *Server) handleStats(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		logger.Error("Stats query failed", zap.Error(err))
		httputil.JSONError(ctx, "storage error", fasthttp.StatusInternalServerError)
		return
	}

	httputil.JSONData(ctx, statsResponse{Rows: stats.Rows, Bytes: stats.Bytes}, fasthttp.StatusOK)
}

// purgeResponse is the body of POST /purge.
type purgeResponse struct {
	RowsDeleted int64 `json:"rows_deleted"`
}

func (s *Server) handlePurge(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	var req purgeRequest
	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			httputil.JSONError(ctx, "invalid request body: "+err.Error(), fasthttp.StatusBadRequest)
			return
		}
	}

	if req.OlderThanDays < 0 {
		httputil.JSONError(ctx, "older_than_days must not be negative", fasthttp.StatusBadRequest)
		return
	}

	age := s.maxAge
	if req.OlderThanDays > 0 {
		age = time.Duration(req.OlderThanDays) * 24 * time.Hour
	}

	deleted, err := s.store.PruneOlderThan(ctx, age)
	if err != nil {
		logger.Error("Purge failed", zap.Error(err))
		httputil.JSONError(ctx, "storage error", fasthttp.StatusInternalServerError)
		return
	}

	logger.Info("Purged stored articles",
		zap.Duration("older_than", age),
		zap.Int64("rows_deleted", deleted))
	httputil.JSONData(ctx, purgeResponse{RowsDeleted: deleted}, fasthttp.StatusOK)
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	httputil.JSONSuccess(ctx, "ok", fasthttp.StatusOK)
}
