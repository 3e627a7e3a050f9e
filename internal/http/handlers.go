package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"kakeibo/internal/core"
	klog "kakeibo/internal/log"
	"kakeibo/internal/sheets/xlsx"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks templates and that the ledger can be read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if n, err := s.service.Store().Len(ctx); err != nil {
		checks["ledger"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["ledger"] = map[string]interface{}{
			"status":   "ok",
			"records":  n,
			"revision": s.service.Store().Revision(),
		}
	}

	checks["cache"] = map[string]interface{}{
		"window_entries": s.windowCache.Size(),
		"status":         "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	trace := s.traceMiddleware.GetMetrics()
	limits := s.rateLimiter.GetMetrics()
	cacheStats := s.windowCache.Stats()

	w.WriteHeader(http.StatusOK)
	write := func(name, help, kind string, v interface{}) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, v)
	}
	write("http_requests_total", "Total number of HTTP requests", "counter", trace.TotalRequests)
	write("ledger_records_appended_total", "Records appended", "counter", atomic.LoadInt64(&s.appMetrics.appended))
	write("ledger_records_updated_total", "Records updated", "counter", atomic.LoadInt64(&s.appMetrics.updated))
	write("ledger_records_deleted_total", "Records deleted", "counter", atomic.LoadInt64(&s.appMetrics.deleted))
	write("ledger_revision", "Current ledger revision", "gauge", s.service.Store().Revision())
	write("window_cache_hits_total", "Window cache hits", "counter", cacheStats.Hits)
	write("window_cache_misses_total", "Window cache misses", "counter", cacheStats.Misses)
	write("window_cache_entries", "Window cache entries", "gauge", s.windowCache.Size())
	write("rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", limits.TotalHits)
	write("uptime_seconds", "Process uptime", "gauge", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) categories(ctx context.Context) map[string][]string {
	out := make(map[string][]string, 2)
	for _, k := range []core.Kind{core.Expense, core.Income} {
		cats, err := s.taxonomy.Categories(ctx, k)
		if err != nil {
			klog.FromContext(ctx).WarnContext(ctx, "Category list unavailable", klog.FieldKind, string(k), klog.FieldError, err)
			continue
		}
		out[string(k)] = cats
	}
	return out
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		InternalServerError("テンプレートが読み込まれていません").Write(w)
		return
	}

	days := ParseDays(r.URL.Query(), s.windowDays)
	v, err := s.window(r.Context(), days)
	if err != nil {
		s.writeError(w, r, klog.OpRead, err)
		return
	}

	data := struct {
		Today      string
		Kinds      []kindOption
		Categories map[string][]string
		Window     windowView
	}{
		Today:      s.service.Today().ISO(),
		Kinds:      kindOptions,
		Categories: s.categories(r.Context()),
		Window:     newWindowView(v, days),
	}
	s.render(w, r, "index.html", data)
}

// handleWindow renders the window grid partial.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	days := ParseDays(r.URL.Query(), s.windowDays)
	v, err := s.window(r.Context(), days)
	if err != nil {
		s.writeError(w, r, klog.OpRead, err)
		return
	}
	if s.templates == nil {
		InternalServerError("テンプレートが読み込まれていません").Write(w)
		return
	}
	s.render(w, r, "window", newWindowView(v, days))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		klog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			klog.FieldError, err, "template", name)
		InternalServerError("画面を表示できません").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("リクエスト形式が不正です").Write(w)
		return nil, false
	}
	return p, true
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	rec, err := ParseRecord(p, s.service.Today())
	if err != nil {
		s.writeError(w, r, klog.OpParse, err)
		return
	}

	pos, err := s.service.Add(r.Context(), rec)
	if err != nil {
		s.writeError(w, r, klog.OpAppend, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.appended, 1)
	rev := s.service.Store().Revision()
	klog.NewStructuredLogger(klog.FromContext(r.Context())).
		LogRecordChanged(r.Context(), klog.OpAppend, pos, rec, rev)

	msg := fmt.Sprintf("%s %s %s %s を登録しました", rec.Date, rec.Kind.Label(), rec.Category, core.FormatYen(rec.Amount))
	SuccessResponse(msg).
		TriggerRecordCreated(pos, rev).
		TriggerFormReset().
		TriggerSuccessNotification(msg).
		Write(w)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(r.PathValue("pos"))
	if err != nil {
		BadRequestError("行番号が不正です").Write(w)
		return
	}
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	rev, err := ParseRevision(p.Get("revision"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rec, err := ParseRecord(p, s.service.Today())
	if err != nil {
		s.writeError(w, r, klog.OpParse, err)
		return
	}

	if err := s.service.Update(r.Context(), rev, pos, rec); err != nil {
		s.writeError(w, r, klog.OpUpdate, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.updated, 1)
	newRev := s.service.Store().Revision()
	klog.NewStructuredLogger(klog.FromContext(r.Context())).
		LogRecordChanged(r.Context(), klog.OpUpdate, pos, rec, newRev)

	SuccessResponse("更新しました").
		TriggerRecordUpdated(pos, newRev).
		TriggerSuccessNotification("更新しました").
		Write(w)
}

func (s *Server) handleDeleteRecords(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	positions, err := ParsePositions(p.GetAll("positions"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if len(positions) == 0 {
		ErrorResponse(http.StatusUnprocessableEntity, "削除する行を選択してください").Write(w)
		return
	}
	rev, err := ParseRevision(p.Get("revision"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if err := s.service.Delete(r.Context(), rev, positions); err != nil {
		s.writeError(w, r, klog.OpDelete, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.deleted, int64(len(positions)))

	msg := fmt.Sprintf("%d 件削除しました", len(positions))
	SuccessResponse(msg).
		TriggerRecordsDeleted(positions, s.service.Store().Revision()).
		TriggerSuccessNotification(msg).
		Write(w)
}

// handleExport streams the full ledger as an xlsx workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.Records(r.Context())
	if err != nil {
		s.writeError(w, r, klog.OpExport, err)
		return
	}
	var buf bytes.Buffer
	if err := xlsx.Encode(&buf, records); err != nil {
		s.writeError(w, r, klog.OpExport, err)
		return
	}

	name := fmt.Sprintf("kakeibo-%s.xlsx", s.service.Today().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}
