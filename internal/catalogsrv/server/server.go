package server

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/config"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/services"
	"github.com/practiceops/servicecatalog/internal/common/httpx"
	"github.com/practiceops/servicecatalog/internal/common/logtrace"
	commonmiddleware "github.com/practiceops/servicecatalog/internal/common/middleware"
)

const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderActorID    = "X-Actor-ID"
	HeaderApiVersion = "X-Api-Version"
)

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

type CatalogServer struct {
	Router  *chi.Mux
	catalog *services.CatalogService
}

func CreateNewServer(catalog *services.CatalogService) (*CatalogServer, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog service is required")
	}
	s := &CatalogServer{
		Router:  chi.NewRouter(),
		catalog: catalog,
	}
	return s, nil
}

func (s *CatalogServer) MountHandlers() {
	cfg := config.Config()
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if cfg.HandleCORS {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*", "http://*"},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "If-None-Match", HeaderTenantID, HeaderActorID, HeaderApiVersion},
			ExposedHeaders:   []string{"ETag", "Location", "Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	s.Router.Use(commonmiddleware.SetTimeout(cfg.GetRequestTimeout()))
	s.Router.Use(commonmiddleware.LimitBody(cfg.MaxRequestBodySize))
	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			log.Trace().Str("method", method).Str("route", route).Msg("route")
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("unable to walk routes")
		}
	}
}

func (s *CatalogServer) mountResourceHandlers(r chi.Router) {
	r.Get("/version", s.getVersion)
	r.Get("/ready", s.getReadiness)
	r.Group(func(r chi.Router) {
		r.Use(RequestContextLoader)
		r.Route("/services", services.Router(s.catalog))
	})
}

// RequestContextLoader resolves the tenant and actor of a request. A
// missing X-Tenant-ID header means the null tenant, or default_tenant_id in
// single tenant mode.
func RequestContextLoader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if v := r.Header.Get(HeaderApiVersion); v != "" && !catcommon.IsApiVersionCompatible(v) {
			httpx.ErrInvalidRequest("unsupported api version " + v).Send(w)
			return
		}

		tenantID := catcommon.TenantId(strings.TrimSpace(r.Header.Get(HeaderTenantID)))
		if tenantID.IsNull() && config.Config().SingleTenantMode {
			tenantID = catcommon.TenantId(config.Config().DefaultTenantID)
		}
		if !tenantID.IsNull() && (!tenantIDPattern.MatchString(string(tenantID)) || tenantID.CacheLabel() == catcommon.NullTenant.CacheLabel()) {
			httpx.ErrInvalidTenantId().Send(w)
			return
		}
		ctx = catcommon.WithTenantID(ctx, tenantID)
		if actor := strings.TrimSpace(r.Header.Get(HeaderActorID)); actor != "" {
			ctx = catcommon.WithActor(ctx, actor)
		}

		l := log.Ctx(ctx).With().Str("tenant_id", tenantID.CacheLabel()).Logger()
		ctx = l.WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *CatalogServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "Service Catalog Server: " + catcommon.ServerVersion,
		ApiVersion:    catcommon.ApiVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *CatalogServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")

	if err := s.catalog.Ping(r.Context()); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Database connection failed during readiness check")
		httpx.SendJsonRsp(r.Context(), w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "database connection failed",
		})
		return
	}

	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
