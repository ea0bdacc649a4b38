package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/newspan/internal/acquire"
	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/brief"
	"github.com/ppiankov/newspan/internal/digest"
	"github.com/ppiankov/newspan/internal/store"
)

type sourceView struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Feeds []string `json:"feeds"`
	// Search is true when the outlet supports website search.
	Search bool `json:"search"`
}

type briefResponse struct {
	brief.Result
	Saved int `json:"saved"`
}

type statsResponse struct {
	Total     int                 `json:"total"`
	Today     int                 `json:"today"`
	Sources   int                 `json:"sources"`
	Runs      int                 `json:"runs"`
	BySource  []store.SourceCount `json:"bySource"`
	LastSaved string              `json:"lastSaved,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSources(c *gin.Context) {
	out := make([]sourceView, 0, len(s.opts.Sources))
	for _, src := range s.opts.Sources {
		out = append(out, sourceView{
			ID:     src.ID,
			Name:   src.DisplayName(),
			Feeds:  src.Feeds,
			Search: src.Search.URL != "",
		})
	}
	c.JSON(http.StatusOK, gin.H{"sources": out})
}

func (s *Server) handleBrief(c *gin.Context) {
	var req brief.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload: " + err.Error()})
		return
	}
	if len(req.Sources) == 0 {
		req.Sources = s.opts.DefaultSources
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.BriefTimeout)
	defer cancel()

	res, err := s.briefer.Brief(ctx, req)
	switch {
	case errors.Is(err, acquire.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, acquire.ErrUnreachable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.logger.Error("brief failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "brief failed"})
		return
	}

	resp := briefResponse{Result: res}
	if s.history != nil && !res.Empty() {
		// Saving must not depend on the request context surviving.
		n, err := s.history.SaveRun(context.WithoutCancel(ctx), store.Run{
			ID:        res.RunID,
			Sources:   req.Sources,
			Keywords:  res.Keywords,
			DateRange: res.DateRange,
			Message:   res.Message,
			CreatedAt: res.GeneratedAt,
		}, res.Summaries)
		if err != nil {
			s.logger.Warn("save brief", "run", res.RunID, "err", err)
		}
		resp.Saved = n
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListArticles(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	f, ok := s.filterFromQuery(c)
	if !ok {
		return
	}

	entries, err := s.history.List(c.Request.Context(), f)
	if err != nil {
		s.logger.Error("list articles", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list articles failed"})
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"articles": entries, "count": len(entries)})
}

func (s *Server) handleClearArticles(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	n, err := s.history.Clear(c.Request.Context())
	if err != nil {
		s.logger.Error("clear articles", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear articles failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *Server) handleStats(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	st, err := s.history.Stats(c.Request.Context(), s.opts.Now())
	if err != nil {
		s.logger.Error("stats", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}

	resp := statsResponse{
		Total:    st.Total,
		Today:    st.Today,
		Sources:  st.Sources,
		Runs:     st.Runs,
		BySource: st.BySource,
	}
	if resp.BySource == nil {
		resp.BySource = []store.SourceCount{}
	}
	if !st.LastSaved.IsZero() {
		resp.LastSaved = article.TimeAgo(&st.LastSaved, s.opts.Now())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExport(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", digest.FormatJSON))
	if format == digest.FormatTerminal {
		c.JSON(http.StatusBadRequest, gin.H{"error": "terminal is not an export format"})
		return
	}
	formatter, err := digest.New(format, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, ok := s.filterFromQuery(c)
	if !ok {
		return
	}

	entries, err := s.history.List(c.Request.Context(), f)
	if err != nil {
		s.logger.Error("export articles", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	now := s.opts.Now()
	in := digest.Input{GeneratedAt: now, Keywords: f.Query, Message: "No saved articles."}
	for _, e := range entries {
		item := e.Summary
		item.TimeAgo = article.TimeAgo(item.PublishedAt, now)
		in.Items = append(in.Items, item)
	}

	filename := fmt.Sprintf("newspan-%s.%s", now.Format("2006-01-02"), digest.Extension(format))
	c.Header("Content-Type", digest.ContentType(format))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := formatter.Format(c.Writer, in); err != nil {
		s.logger.Error("write export", "format", format, "err", err)
	}
}

func (s *Server) requireHistory(c *gin.Context) bool {
	if s.history != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage is disabled"})
	return false
}

func (s *Server) filterFromQuery(c *gin.Context) (store.Filter, bool) {
	f := store.Filter{
		Query:  c.Query("q"),
		Source: c.Query("source"),
	}
	since, err := store.PeriodStart(c.Query("period"), s.opts.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return store.Filter{}, false
	}
	f.Since = since
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return store.Filter{}, false
		}
		f.Limit = n
	}
	return f, true
}
