package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
	klog "kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/middleware/security"
	"kakeibo/internal/middleware/trace"
	"kakeibo/internal/services"
	"kakeibo/internal/sheets"
	"kakeibo/internal/taxonomy"
	appweb "kakeibo/web"
)

// Options tunes the server. Zero values select the defaults.
type Options struct {
	WindowDays        int
	CacheSize         int
	CacheTTL          time.Duration
	RequestsPerMinute int
	Logger            *klog.Logger
}

func (o Options) withDefaults() Options {
	if o.WindowDays <= 0 {
		o.WindowDays = ledger.DefaultWindowDays
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 64
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 5 * time.Minute
	}
	if o.RequestsPerMinute <= 0 {
		o.RequestsPerMinute = 60
	}
	if o.Logger == nil {
		o.Logger = klog.New(klog.DefaultConfig())
	}
	return o
}

type Server struct {
	http.Server
	templates  *template.Template
	service    *services.LedgerService
	taxonomy   sheets.TaxonomyReader
	windowDays int
	logger     *klog.Logger

	// Window views keyed by revision, date and window length.
	windowCache  *cache.LRUCache[string, ledger.View]
	cacheManager *cache.Manager

	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware
	ipExtractor     *security.IPExtractor
	appMetrics      *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime   time.Time
	appended int64
	updated  int64
	deleted  int64
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server. A nil taxonomy falls back to the built-in category lists.
func NewServer(addr string, svc *services.LedgerService, tax sheets.TaxonomyReader, opts Options) *Server {
	opts = opts.withDefaults()
	if tax == nil {
		tax = taxonomy.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		service:      svc,
		taxonomy:     tax,
		windowDays:   opts.WindowDays,
		logger:       opts.Logger.WithComponent(klog.ComponentHTTP),
		windowCache:  cache.NewLRUCache[string, ledger.View](opts.CacheSize, opts.CacheTTL),
		cacheManager: cache.NewManager(opts.Logger.Logger),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		ipExtractor:  security.NewIPExtractor(),
		appMetrics:   &appMetrics{uptime: time.Now()},
	}
	s.cacheManager.Register(s.windowCache)
	s.traceMiddleware = trace.NewMiddleware(opts.Logger, s.ipExtractor.ClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", klog.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", klog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /ui/window", s.handleWindow)
	mux.HandleFunc("POST /records", s.handleCreateRecord)
	mux.HandleFunc("POST /records/delete", s.handleDeleteRecords)
	mux.HandleFunc("POST /records/{pos}", s.handleUpdateRecord)
	mux.HandleFunc("GET /export", s.handleExport)

	limited := s.rateLimiter.Middleware(s.ipExtractor.ClientIP, s.onRateLimit, http.MethodPost)
	s.Handler = security.Headers(security.DefaultHeadersConfig())(
		s.traceMiddleware.Middleware(limited(mux)))
	return s
}

// RunBackground runs the cache and rate limiter housekeeping until ctx is
// done.
func (s *Server) RunBackground(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.cacheManager.Run(ctx, 10*time.Minute) })
	g.Go(func() error { return s.rateLimiter.Run(ctx) })
	return g.Wait()
}

// Refresh re-reads the ledger after an external edit and drops cached
// windows.
func (s *Server) Refresh(ctx context.Context) error {
	s.windowCache.Purge()
	return s.service.Reload(ctx)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	klog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		klog.FieldClientIP, s.ipExtractor.ClientIP(r),
		klog.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	ErrorResponse(http.StatusTooManyRequests, "リクエストが多すぎます。しばらくしてから再試行してください。").
		Write(w)
}

func windowCacheKey(rev uint64, today core.Date, days int) string {
	return strconv.FormatUint(rev, 10) + ":" + today.ISO() + ":" + strconv.Itoa(days)
}

// window returns the trailing window ending today, served from the cache
// while the ledger revision is unchanged.
func (s *Server) window(ctx context.Context, days int) (ledger.View, error) {
	if days <= 0 {
		days = s.windowDays
	}
	today := s.service.Today()
	if rev := s.service.Store().Revision(); rev != 0 {
		if v, ok := s.windowCache.Get(windowCacheKey(rev, today, days)); ok {
			return v, nil
		}
	}

	v, err := s.service.Window(ctx, days)
	if err != nil {
		return ledger.View{}, err
	}
	s.windowCache.Set(windowCacheKey(v.Revision, today, days), v)
	klog.FromContext(ctx).DebugContext(ctx, "Window cached",
		klog.FieldRevision, v.Revision,
		klog.FieldWindowDays, days,
		"rows", len(v.Rows))
	return v, nil
}
