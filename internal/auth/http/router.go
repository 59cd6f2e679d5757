package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/cache"
	"github.com/clubdeck/clubdeck/internal/auth/service"
	"github.com/clubdeck/clubdeck/internal/auth/store"
	"github.com/clubdeck/clubdeck/pkg/httpx"
	"github.com/clubdeck/clubdeck/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	cache cache.SessionCache

	AuthService     *service.AuthService
	SessionService  *service.SessionService
	MFAService      *service.MFAService
	PasswordService *service.PasswordService
	LinkingService  *service.LinkingService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	ca cache.SessionCache,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		cache:        ca,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSSO()
	r.registerSessions()
	r.registerMFA()
	r.registerPasswords()
	r.registerIdentities()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// validator adapts the session service to the authn middleware contract.
// Negative verdicts become errors so the middleware can answer 401.
func (r *Router) validator() httpx.TokenValidator {
	return &sessionValidator{Sessions: r.SessionService}
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService:    r.AuthService,
		SessionService: r.SessionService,
	}

	// Unauthenticated credential endpoints - strict rate limit by IP
	// (brute force prevention).
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.Register),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.Login),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/mfa/verify",
		httpx.Chain(http.HandlerFunc(h.VerifyMFA),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.Refresh),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Logout and validate take the token in the body/header themselves;
	// they tolerate dead tokens so a moderate limit is enough.
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.Logout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/validate",
		httpx.Chain(http.HandlerFunc(h.Validate),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// Authenticated profile endpoint.
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.Me),
			httpx.AuthnMiddleware(r.validator()),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSSO() {
	h := &SSOHandler{AuthService: r.AuthService}

	r.Mux.Handle("GET /v1/auth/sso/{provider}",
		httpx.Chain(http.HandlerFunc(h.Begin),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/sso/{provider}/callback",
		httpx.Chain(http.HandlerFunc(h.Callback),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Linking starts from an authenticated session; the callback is the
	// shared one above, steered by the signed state.
	r.Mux.Handle("POST /v1/identities/link/{provider}",
		httpx.Chain(http.HandlerFunc(h.BeginLink),
			httpx.AuthnMiddleware(r.validator()),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{SessionService: r.SessionService}

	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.validator()),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/sessions", secured(h.List))
	r.Mux.Handle("DELETE /v1/sessions/{id}", secured(h.Revoke))
	r.Mux.Handle("DELETE /v1/sessions", secured(h.RevokeOthers))
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.validator()),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/mfa/totp/enroll", secured(h.BeginEnrollment))
	r.Mux.Handle("POST /v1/mfa/totp/activate", secured(h.CompleteEnrollment))
	r.Mux.Handle("POST /v1/mfa/backup-codes", secured(h.RegenerateBackupCodes))
	r.Mux.Handle("DELETE /v1/mfa", secured(h.Disable))
}

func (r *Router) registerPasswords() {
	h := &PasswordHandler{PasswordService: r.PasswordService}

	// Public reset endpoints - strict rate limit by IP.
	r.Mux.Handle("POST /v1/password/reset",
		httpx.Chain(http.HandlerFunc(h.RequestReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/password/reset/complete",
		httpx.Chain(http.HandlerFunc(h.CompleteReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/email/verify",
		httpx.Chain(http.HandlerFunc(h.VerifyEmail),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Authenticated password and email endpoints.
	r.Mux.Handle("POST /v1/password/change",
		httpx.Chain(http.HandlerFunc(h.ChangePassword),
			httpx.AuthnMiddleware(r.validator()),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/email/verify/resend",
		httpx.Chain(http.HandlerFunc(h.ResendVerification),
			httpx.AuthnMiddleware(r.validator()),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerIdentities() {
	h := &IdentitiesHandler{LinkingService: r.LinkingService}

	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.validator()),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/identities", secured(h.List))
	r.Mux.Handle("DELETE /v1/identities/{id}", secured(h.Unlink))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.cache))
}
