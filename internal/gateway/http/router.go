package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sundog-labs/authgate/internal/gateway/kv"
	"github.com/sundog-labs/authgate/internal/gateway/service"
	"github.com/sundog-labs/authgate/internal/gateway/store"
	"github.com/sundog-labs/authgate/pkg/httpx"
	"github.com/sundog-labs/authgate/pkg/slogx"

	_ "github.com/sundog-labs/authgate/api/gateway" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	frontendURL  string
	cookieSecure bool

	store store.Store
	kv    *kv.Client

	LoginService *service.LoginService
	UserService  *service.UserService
	TokenService *service.TokenService
}

func NewRouter(
	buildVersion string,
	frontendURL string,
	cookieSecure bool,
	st store.Store,
	kvClient *kv.Client,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		frontendURL:  frontendURL,
		cookieSecure: cookieSecure,
		store:        st,
		kv:           kvClient,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			AuthGate Login Gateway API
//	@version		0.1.0
//	@description	OIDC login gateway: it drives the Google sign-in flow, issues
//	@description	its own JWT pairs backed by a revocation ledger, and manages
//	@description	rotation and logout.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	begin := &LoginBeginHandler{
		LoginService: r.LoginService,
		FrontendURL:  r.frontendURL,
	}
	r.Mux.Handle("GET /v1/auth/google",
		httpx.Chain(begin,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	callback := &LoginCallbackHandler{
		LoginService: r.LoginService,
		FrontendURL:  r.frontendURL,
		CookieSecure: r.cookieSecure,
	}
	r.Mux.Handle("GET /v1/auth/callback",
		httpx.Chain(callback,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Rotation is the hottest authenticated path, but still bounded.
	refresh := &RefreshHandler{
		TokenService: r.TokenService,
		CookieSecure: r.cookieSecure,
	}
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refresh,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	logout := &LogoutHandler{
		TokenService: r.TokenService,
		CookieSecure: r.cookieSecure,
	}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logout,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerUsers() {
	terms := &TermsHandler{
		UserService:  r.UserService,
		CookieSecure: r.cookieSecure,
	}
	r.Mux.Handle("POST /v1/users/terms",
		httpx.Chain(terms,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	profile := &ProfileHandler{UserService: r.UserService}
	r.Mux.Handle("GET /v1/users/me",
		httpx.Chain(profile,
			httpx.AuthnMiddleware(r.TokenService, AccessTokenCookie),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.store, r.kv))
}
