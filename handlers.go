package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Tutortoise/digit-recognition-service/digits"
	"github.com/Tutortoise/digit-recognition-service/models"
)

type AppState struct {
	Config    *Config
	Pool      *ModelSessionPool
	Resampler digits.Resampler
	Metrics   *Metrics
	Logger    *zap.Logger
}

type PredictRequest struct {
	Image string `json:"image"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

const (
	outcomeSuccess        = "success"
	outcomeInvalidRequest = "invalid_request"
	outcomeSessionError   = "session_error"

	outcomeNotFound         = "not_found"
	outcomeMethodNotAllowed = "method_not_allowed"
)

func newRouter(state *AppState) *mux.Router {
	cors := corsMiddleware(state.Config.CORS.AllowedOrigins)

	r := mux.NewRouter()
	r.HandleFunc("/", state.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", state.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/predict", handlePredict(state)).Methods(http.MethodPost, http.MethodOptions)
	state.addMonitoringRoutes(r)

	// Middleware only runs on matched routes, so the fallback handlers carry
	// the CORS headers themselves.
	r.NotFoundHandler = cors(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sendErrorResponse(w, state.Logger, outcomeNotFound, MsgNotFound, req.URL.Path, http.StatusNotFound)
	}))
	r.MethodNotAllowedHandler = cors(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sendErrorResponse(w, state.Logger, outcomeMethodNotAllowed, MsgMethodNotAllowed, req.Method+" "+req.URL.Path, http.StatusMethodNotAllowed)
	}))

	r.Use(
		recoverMiddleware(state.Logger),
		mux.CORSMethodMiddleware(r),
		cors,
	)
	return r
}

func (s *AppState) addMonitoringRoutes(r *mux.Router) {
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)
}

func (s *AppState) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.Logger, http.StatusOK, MessageResponse{Message: MsgRunning})
}

func (s *AppState) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.Logger, http.StatusOK, map[string]interface{}{
		"pool":           s.Pool.Stats(),
		"last_errors":    s.Pool.LastErrors(),
		"resize_backend": s.Resampler.Name(),
		"cpu_features":   digits.CPUFeatures(),
	})
}

func handlePredict(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTotal := time.Now()
		requestID := uuid.NewString()
		timings := &models.ProcessingTimings{RequestID: requestID}
		logger := state.Logger.With(zap.String("request_id", requestID))
		w.Header().Set("X-Request-ID", requestID)

		finish := func(outcome string, result *models.PredictionResult) {
			timings.Total = time.Since(startTotal)
			state.Metrics.ObserveRequest(outcome, timings, result)
			logTimings(logger, timings)
		}

		r.Body = http.MaxBytesReader(w, r.Body, state.Config.Server.MaxBodyBytes)
		var req PredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Info("invalid request body", zap.Error(err))
			sendErrorResponse(w, logger, outcomeInvalidRequest, MsgInvalidRequest, err.Error(), http.StatusBadRequest)
			finish(outcomeInvalidRequest, nil)
			return
		}

		tensor, err := digits.Normalize(req.Image, state.Resampler, timings)
		if err != nil {
			state.predictionFailed(w, logger, err)
			finish(digits.KindOf(err).Code(), nil)
			return
		}

		session, err := state.Pool.Acquire(r.Context())
		if err != nil {
			logger.Warn("acquire model session", zap.Error(err))
			status := http.StatusServiceUnavailable
			msg := MsgBusy
			if errors.Is(err, ErrPoolClosed) {
				msg = err.Error()
			}
			sendErrorResponse(w, logger, outcomeSessionError, msg, err.Error(), status)
			finish(outcomeSessionError, nil)
			return
		}

		result, err := digits.Classify(tensor, session, timings)
		if err != nil {
			if digits.IsRuntimeFailure(err) {
				state.Pool.Discard(session, err)
			} else {
				state.Pool.Release(session)
			}
			state.predictionFailed(w, logger, err)
			finish(digits.KindOf(err).Code(), nil)
			return
		}
		state.Pool.Release(session)

		logger.Info("prediction",
			zap.Int("digit", result.Digit),
			zap.Float64("confidence", result.Probabilities[result.Digit]),
			zap.Bool("inverted", timings.Inverted),
		)
		writeJSON(w, logger, http.StatusOK, result)
		finish(outcomeSuccess, result)
	}
}

// predictionFailed maps every pipeline error to the same server-error
// response; the code field carries the error kind.
func (s *AppState) predictionFailed(w http.ResponseWriter, logger *zap.Logger, err error) {
	code := digits.KindOf(err).Code()
	logger.Warn("prediction failed", zap.String("error_code", code), zap.Error(err))
	sendErrorResponse(w, logger, code, MsgPredictionFailed, err.Error(), http.StatusInternalServerError)
}

func corsMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic while serving request",
						zap.String("path", r.URL.Path),
						zap.Any("panic", rec),
						zap.Stack("stack"),
					)
					sendErrorResponse(w, logger, "internal_error", MsgPredictionFailed, "", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", zap.Int("status", status), zap.Error(err))
	}
}

func sendErrorResponse(w http.ResponseWriter, logger *zap.Logger, code, message, details string, status int) {
	writeJSON(w, logger, status, ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
