package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spilld/internal/device"
	"spilld/pkg/types"
)

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(admission)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Route("/buffers", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			bufs, err := svc.Buffers()
			if err != nil {
				writeJSONError(w, statusFor(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, types.BuffersResponse{Buffers: bufs})
		})

		r.Get("/lookup", func(w http.ResponseWriter, r *http.Request) {
			addr, err := strconv.ParseUint(r.URL.Query().Get("addr"), 0, 64)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "addr must be an integer (0x prefix allowed)")
				return
			}
			size := int64(1)
			if v := r.URL.Query().Get("size"); v != "" {
				if size, err = strconv.ParseInt(v, 0, 64); err != nil {
					writeJSONError(w, http.StatusBadRequest, "size must be an integer")
					return
				}
			}
			b, err := svc.Lookup(device.Address(addr), size)
			if err != nil {
				writeJSONError(w, statusFor(err), err.Error())
				return
			}
			if b == nil {
				writeJSONError(w, http.StatusNotFound, "no buffer overlaps the range")
				return
			}
			writeJSON(w, http.StatusOK, b)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
				writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			var req types.AllocateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			b, err := svc.Allocate(req)
			if err != nil {
				status := statusFor(err)
				writeJSONError(w, status, err.Error())
				logOp(r, "allocate", start, status, err)
				return
			}
			writeJSON(w, http.StatusCreated, b)
			logOp(r, "allocate", start, http.StatusCreated, nil)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				id, ok := bufferID(w, r)
				if !ok {
					return
				}
				if err := svc.Release(id); err != nil {
					status := statusFor(err)
					writeJSONError(w, status, err.Error())
					logOp(r, "release", start, status, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
				logOp(r, "release", start, http.StatusNoContent, nil)
			})

			r.Post("/move", func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				id, ok := bufferID(w, r)
				if !ok {
					return
				}
				target, err := device.ParseLocation(r.URL.Query().Get("target"))
				if err != nil {
					writeJSONError(w, http.StatusBadRequest, err.Error())
					return
				}
				b, err := svc.Move(id, target)
				if err != nil {
					status := statusFor(err)
					writeJSONError(w, status, err.Error())
					logOp(r, "move", start, status, err)
					return
				}
				writeJSON(w, http.StatusOK, b)
				logOp(r, "move", start, http.StatusOK, nil)
			})

			r.Post("/expose", func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				id, ok := bufferID(w, r)
				if !ok {
					return
				}
				resp, err := svc.Expose(id)
				if err != nil {
					status := statusFor(err)
					writeJSONError(w, status, err.Error())
					logOp(r, "expose", start, status, err)
					return
				}
				writeJSON(w, http.StatusOK, resp)
				logOp(r, "expose", start, http.StatusOK, nil)
			})
		})
	})

	r.Post("/spill", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp, err := svc.SpillOne()
		if err != nil {
			status := statusFor(err)
			writeJSONError(w, status, err.Error())
			logOp(r, "spill", start, status, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		logOp(r, "spill", start, http.StatusOK, nil)
	})

	r.Post("/spill/limit", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var limit *int64
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.ParseInt(v, 0, 64)
			if err != nil || n < 0 {
				writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = &n
		}
		resp, err := svc.SpillToLimit(limit)
		if err != nil {
			status := statusFor(err)
			writeJSONError(w, status, err.Error())
			logOp(r, "spill_limit", start, status, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		logOp(r, "spill_limit", start, http.StatusOK, nil)
	})

	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		events := svc.Events(limit)
		if events == nil {
			events = []types.EventRecord{}
		}
		writeJSON(w, http.StatusOK, types.EventsResponse{Events: events})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("spilling disabled"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func bufferID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid buffer id")
		return 0, false
	}
	return id, true
}
