package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kadry-group/leave-cli/internal/extract"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PDF upload server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p := newPipeline()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
		r.Use(newIPRateLimiter(cfg.Server.RatePerMinute, cfg.Server.RateBurst).middleware)

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/extract", func(w http.ResponseWriter, req *http.Request) {
			filename, data, ok := readPDFUpload(w, req)
			if !ok {
				return
			}

			res, err := p.Run(req.Context(), data, filename, req.FormValue("model"))
			if err != nil {
				writeExtractError(w, err)
				return
			}

			writeJSON(w, http.StatusOK, buildResponse(res, cfg.Anthropic.DebugSteps))
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// readPDFUpload pulls the multipart "file" field, enforcing the PDF suffix
// and the configured size cap. Writes the error response itself when
// returning ok=false.
func readPDFUpload(w http.ResponseWriter, req *http.Request) (string, []byte, bool) {
	maxBytes := cfg.PDF.MaxPDFBytes()
	req.Body = http.MaxBytesReader(w, req.Body, maxBytes+1024*1024)

	f, header, err := req.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload(http.StatusBadRequest,
			"Не удалось прочитать загруженный файл.", nil))
		return "", nil, false
	}
	defer f.Close()

	filename := header.Filename
	if filename == "" {
		filename = "upload.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		writeJSON(w, http.StatusBadRequest, errorPayload(http.StatusBadRequest,
			"Пожалуйста, загрузите PDF файл.", nil))
		return "", nil, false
	}

	data, err := io.ReadAll(f)
	if err != nil || int64(len(data)) > maxBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorPayload(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Файл слишком большой. Лимит: %d MB.", cfg.PDF.MaxUploadMB), nil))
		return "", nil, false
	}

	return filename, data, true
}

// writeExtractError maps a pipeline failure onto the HTTP response. The
// trail is exposed only when debug visibility is on.
func writeExtractError(w http.ResponseWriter, err error) {
	var ue *extract.UpstreamError
	if eris.As(err, &ue) {
		zap.L().Error("extraction failed",
			zap.String("step", ue.Step),
			zap.Int("status", ue.Status),
			zap.String("upstream_request_id", ue.UpstreamID),
		)
		payload := errorPayload(ue.Status, ue.Message, ue)
		writeJSON(w, ue.Status, payload)
		return
	}

	zap.L().Error("extraction failed", zap.Error(err))
	writeJSON(w, http.StatusBadGateway, errorPayload(http.StatusBadGateway,
		"Не удалось обработать документ во внешнем AI-сервисе.", nil))
}

func errorPayload(status int, detail string, ue *extract.UpstreamError) map[string]any {
	payload := map[string]any{
		"error":  "Ошибка при обработке PDF.",
		"status": status,
		"detail": detail,
	}
	if ue != nil {
		payload["step"] = ue.Step
		if ue.UpstreamID != "" {
			payload["upstream_request_id"] = ue.UpstreamID
		}
		if cfg.Anthropic.DebugSteps {
			payload["debug_steps"] = ue.Trail
		}
	}
	return payload
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ipRateLimiter applies a per-client-IP token bucket across all routes.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPRateLimiter(perMinute float64, burst int) *ipRateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		limiters: map[string]*rate.Limiter{},
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
	}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	return lim
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ip, _, err := net.SplitHostPort(req.RemoteAddr)
		if err != nil {
			ip = req.RemoteAddr
		}
		if !l.get(ip).Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":  "Слишком много запросов. Повторите попытку через минуту.",
				"status": http.StatusTooManyRequests,
			})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
