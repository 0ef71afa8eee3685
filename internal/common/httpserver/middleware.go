package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/CredencialAcceso/CredencialAcceso/internal/common/config"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/logger"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares in the given order (first runs outermost).
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		h = mws[i](h)
	}
	return h
}

// statusRecorder captures the response status for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Recovery keeps a handler panic from taking the process down.
func Recovery(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if log != nil {
						log.Errorf("panic in http handler method=%s path=%s err=%v stack=%s",
							r.Method, r.URL.Path, rec, string(debug.Stack()))
					}
					writeJSONError(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog records method/path/status/cost for every request.
func AccessLog(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			cost := time.Since(start)

			if log != nil {
				fields := map[string]interface{}{
					"method": r.Method,
					"path":   r.URL.Path,
					"status": rec.status,
					"cost":   cost.String(),
				}
				if rec.status >= http.StatusInternalServerError {
					log.WithFields(fields).Warn("http request failed")
				} else {
					log.WithFields(fields).Info("http request ok")
				}
			}
		})
	}
}

// Tracing opens an opentracing span per request, continuing a propagated
// trace when the inbound headers carry one.
func Tracing(serviceName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracer := opentracing.GlobalTracer()
			operation := fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)

			var span opentracing.Span
			wireCtx, err := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(r.Header))
			if err == nil && wireCtx != nil {
				span = tracer.StartSpan(operation, ext.RPCServerOption(wireCtx))
			} else {
				span = tracer.StartSpan(operation)
			}
			defer span.Finish()

			ext.HTTPMethod.Set(span, r.Method)
			ext.HTTPUrl.Set(span, r.URL.Path)
			ext.Component.Set(span, "http")
			if serviceName != "" {
				span.SetTag("service", serviceName)
			}

			ctx := opentracing.ContextWithSpan(r.Context(), span)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit rejects requests on the listed path prefixes once the limiter
// runs dry. Guards the public kiosk endpoints and the login form.
func RateLimit(limiter middleware.RateLimiter, pathPrefixes ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && matchesPrefix(pathPrefixes, r.URL.Path) {
				if !limiter.Allow(r.Context()) {
					writeJSONError(w, http.StatusTooManyRequests, "demasiadas solicitudes")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type authContextKey struct{}

// AuthInfo is the minimal identity parsed from the JWT, stored in ctx.
type AuthInfo struct {
	Subject string   // admin session id
	Roles   []string
}

// AuthFromContext extracts the auth info placed by JWTAuth.
func AuthFromContext(ctx context.Context) (AuthInfo, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return AuthInfo{}, false
	}
	ai, ok := v.(AuthInfo)
	return ai, ok
}

// JWTAuth enforces `Authorization: Bearer <token>` on every non-public path:
// - verifies the HS256 signature plus exp/nbf (jwt/v5 defaults)
// - optionally checks iss/aud
// - writes the parsed AuthInfo into the request context
func JWTAuth(cfg config.AuthConfig, log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isPublicPath(cfg.PublicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if strings.TrimSpace(cfg.JWTSecret) == "" {
				if log != nil {
					log.Warn("auth enabled but jwt_secret is empty")
				}
				writeJSONError(w, http.StatusUnauthorized, "auth not configured")
				return
			}

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing authorization")
				return
			}
			tokenStr := raw
			if strings.HasPrefix(strings.ToLower(tokenStr), "bearer ") {
				tokenStr = strings.TrimSpace(tokenStr[len("bearer "):])
			}
			if tokenStr == "" {
				writeJSONError(w, http.StatusUnauthorized, "invalid authorization")
				return
			}

			claims := struct {
				Roles []string `json:"roles"`
				jwt.RegisteredClaims
			}{}

			parsed, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
				if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
				}
				return []byte(cfg.JWTSecret), nil
			}, jwt.WithLeeway(30*time.Second))
			if err != nil || parsed == nil || !parsed.Valid {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
				writeJSONError(w, http.StatusUnauthorized, "invalid issuer")
				return
			}
			if cfg.Audience != "" && !audienceContains(claims.Audience, cfg.Audience) {
				writeJSONError(w, http.StatusUnauthorized, "invalid audience")
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, AuthInfo{
				Subject: claims.Subject,
				Roles:   claims.Roles,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" || len(aud) == 0 {
		return false
	}
	for _, v := range aud {
		if strings.TrimSpace(v) == want {
			return true
		}
	}
	return false
}

func isPublicPath(public []string, path string) bool {
	if path == "" || len(public) == 0 {
		return false
	}
	for _, p := range public {
		if strings.TrimSpace(p) == path {
			return true
		}
	}
	return false
}

func matchesPrefix(prefixes []string, path string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
