// Package httpapi exposes the identity gateway engine over HTTP. Every
// response uses the same envelope: {"success":true,...} or
// {"success":false,"error":...,"error_description":...}.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	authgate "github.com/obsidianbank/authgate"
)

// Server defines a public type used by authgate APIs.
//
// Server instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Server struct {
	engine   *authgate.Engine
	logger   zerolog.Logger
	validate *validator.Validate
}

// NewServer describes the newserver operation and its observable behavior.
//
// NewServer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewServer(engine *authgate.Engine, logger zerolog.Logger) *Server {
	return &Server{
		engine:   engine,
		logger:   logger.With().Str("component", "httpapi").Logger(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router describes the router operation and its observable behavior.
//
// Router does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestContext)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/onboarding", func(r chi.Router) {
			r.Post("/check", s.handleOnboardingCheck)
			r.Post("/send-otp", s.handleOnboardingSendOtp)
			r.Post("/verify-otp", s.handleOnboardingVerifyOtp)
			r.Post("/set-password", s.handleOnboardingSetPassword)
			r.Post("/complete", s.handleOnboardingComplete)
		})

		r.Route("/password-reset", func(r chi.Router) {
			r.Post("/request", s.handleResetRequest)
			r.Post("/resend-otp", s.handleResetRequest)
			r.Post("/verify-otp", s.handleResetVerifyOtp)
			r.Post("/complete", s.handleResetComplete)
			r.Post("/send-email", s.handleResetSendEmail)
		})

		r.Route("/mfa/reset-guardian", func(r chi.Router) {
			r.Post("/send-otp", s.handleGuardianSendOtp)
			r.Post("/verify-otp", s.handleGuardianVerifyOtp)
		})

		r.Route("/passkey-fallback", func(r chi.Router) {
			r.Post("/send-otp", s.handlePasskeyFallbackSendOtp)
			r.Post("/verify-otp", s.handlePasskeyFallbackVerifyOtp)
			r.Post("/consume", s.handlePasskeyFallbackConsume)
		})

		r.Route("/stepup", func(r chi.Router) {
			r.Post("/start", s.handleStepUpStart)
			r.Post("/verify", s.handleStepUpVerify)
			r.Post("/refresh-token", s.handleStepUpRefreshToken)
		})

		r.Route("/mfa", func(r chi.Router) {
			r.Post("/enrollments", s.handleMfaEnrollments)
			r.Post("/associate", s.handleMfaAssociate)
			r.Post("/confirm", s.handleMfaConfirm)
			r.Post("/poll", s.handleMfaPoll)
			r.Post("/send-challenge", s.handleMfaSendChallenge)
			r.Post("/verify-challenge", s.handleMfaVerifyChallenge)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/register", s.handleAccountRegister)
			r.Post("/provision", s.handleAccountProvision)
			r.Post("/activate", s.handleAccountActivate)
			r.Post("/lock", s.handleAccountLock)
			r.Post("/unlock", s.handleAccountUnlock)
			r.Post("/deactivate", s.handleAccountDeactivate)
			r.Get("/{loginID}", s.handleAccountGet)
		})
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics/snapshot", s.handleMetricsSnapshot)

	return r
}

// requestContext copies the transport-level caller identity into the
// engine's context keys so audit events carry IP and actor.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authgate.WithClientIP(r.Context(), r.RemoteAddr)
		if actor := r.Header.Get("X-Actor"); actor != "" {
			ctx = authgate.WithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := s.engine.MetricsSnapshot()

	counters := make(map[string]uint64, len(snapshot.Counters))
	for id, value := range snapshot.Counters {
		counters[metricName(id)] = value
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"counters":      counters,
		"audit_dropped": s.engine.AuditDropped(),
	})
}
