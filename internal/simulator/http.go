package simulator

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/logging"
)

const maxRequestBody = 4096

// requestMetrics counts requests per route template and status code.
type requestMetrics struct {
	requests *prometheus.CounterVec
	clients  prometheus.GaugeFunc
}

func newRequestMetrics(reg prometheus.Registerer, h *hub) *requestMetrics {
	m := &requestMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tigerscale_sim",
			Name:      "http_requests_total",
			Help:      "Requests served by the emulated scale.",
		}, []string{"route", "code"}),
		clients: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "tigerscale_sim",
			Name:      "push_clients",
			Help:      "Connected WebSocket clients.",
		}, func() float64 { return float64(h.count()) }),
	}
	reg.MustRegister(m.requests, m.clients)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// middleware logs and counts every request. WebSocket upgrades pass through
// untouched because the recorder would hide http.Hijacker.
func (m *requestMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		if websocketRequest(r) {
			m.requests.WithLabelValues(route, "101").Inc()
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		logging.LogHTTPExchange(r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func websocketRequest(r *http.Request) bool {
	return r.Header.Get("Upgrade") != "" && r.Header.Get("Connection") != ""
}

func (s *Server) routes(handler http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(s.metrics.middleware)

	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.serve).Methods(http.MethodGet)
	r.HandleFunc("/api/tare", s.handleTare).Methods(http.MethodPost)
	r.HandleFunc("/api/calibration", s.handleCalibration).Methods(http.MethodPost)
	r.HandleFunc("/api/apikey", s.handleSetAPIKey).Methods(http.MethodPost)
	r.HandleFunc("/apikeydelete", s.handleDeleteAPIKey).Methods(http.MethodGet)
	r.HandleFunc("/api/reset-wifi", s.handleResetWiFi).Methods(http.MethodPost)
	r.HandleFunc("/api/factory-reset", s.handleFactoryReset).Methods(http.MethodPost)
	r.HandleFunc("/api/push-weight", s.handlePushWeight).Methods(http.MethodPost)

	// Simulation controls, not part of the firmware.
	sim := r.PathPrefix("/sim").Subrouter()
	sim.HandleFunc("/load", s.handlePlace).Methods(http.MethodPost)
	sim.HandleFunc("/tag", s.handlePresentTag).Methods(http.MethodPost)
	sim.HandleFunc("/tag", s.handleRemoveTag).Methods(http.MethodDelete)

	r.Handle("/metrics", handler).Methods(http.MethodGet)
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, s.scale.Status())
}

func (s *Server) handleTare(w http.ResponseWriter, r *http.Request) {
	s.scale.Tare()
	writeOK(w)
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value  *float64 `json:"value"`
		Factor *float64 `json:"factor"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	// Older firmware read "factor"; the current page sends "value".
	value := req.Value
	if value == nil {
		value = req.Factor
	}
	if value == nil {
		writeError(w, http.StatusBadRequest, "missing value")
		return
	}
	if err := s.scale.SetCalibrationFactor(*value); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handleSetAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	valid, name, err := s.scale.SetAPIKey(req.Key)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp := map[string]any{"success": valid}
	if valid && name != "" {
		resp["displayName"] = name
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := s.scale.DeleteAPIKey(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleResetWiFi(w http.ResponseWriter, r *http.Request) {
	if err := s.scale.ResetWiFi(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handleFactoryReset(w http.ResponseWriter, r *http.Request) {
	if err := s.scale.FactoryReset(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handlePushWeight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Weight int `json:"weight"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.scale.PushWeight(req.Weight); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Grams float64 `json:"grams"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.scale.Place(req.Grams)
	writeOK(w)
}

func (s *Server) handlePresentTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID string `json:"uid"`
	}
	if err := decodeJSON(r, &req); err != nil || req.UID == "" {
		writeError(w, http.StatusBadRequest, "missing uid")
		return
	}
	s.scale.PresentTag(req.UID)
	writeOK(w)
}

func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	s.scale.PresentTag("")
	writeOK(w)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNoTag), errors.Is(err, ErrInvalidWeight),
		errors.Is(err, ErrInvalidFactor), errors.Is(err, ErrMissingAPIKey):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidAPIKey):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to write response", zap.Error(err))
	}
}
