package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwise1/hazard_map/internal/logger"
	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/util"
	"github.com/bwise1/hazard_map/util/tracing"
	"github.com/bwise1/hazard_map/util/values"
	"github.com/golang-jwt/jwt"
	"github.com/lucsky/cuid"
)

var (
	errTokenExpired = errors.New("token expired")
	errInvalidToken = errors.New("invalid token")
)

// TokenClaims is what the access token tells us about the caller.
type TokenClaims struct {
	UserID string
	Type   string
	Role   string
	Exp    int64
}

// RequestTracing handles the request tracing context
func RequestTracing(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestSource := r.Header.Get(values.HeaderRequestSource)
		if requestSource == "" {
			errM := errors.New("X-Request-Source is empty")

			writeErrorResponse(w, errM, values.Error, errM.Error())
			return
		}

		requestID := r.Header.Get(values.HeaderRequestID)
		if requestID == "" {
			requestID = cuid.New()
		}
		w.Header().Set(values.HeaderRequestID, requestID)

		tracingContext := tracing.Context{
			RequestID:     requestID,
			RequestSource: requestSource,
		}

		ctx = context.WithValue(ctx, values.ContextTracingKey, tracingContext)
		ctx = logger.WithRequestID(ctx, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}

	return http.HandlerFunc(fn)
}

// RequireLogin rejects requests without a valid access token.
func (api *API) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeErrorResponse(w, errors.New(values.NotAuthorised), values.NotAuthorised, "not-authorized")
			return
		}

		claims, err := api.verifyToken(token)
		if err != nil {
			if errors.Is(err, errTokenExpired) {
				writeErrorResponse(w, err, values.TokenExpired, "token-expired")
				return
			}
			writeErrorResponse(w, err, values.NotAuthorised, "invalid-token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// OptionalLogin attaches the caller when a valid token is present and lets
// anonymous requests through. Browsers cannot set headers on websocket
// upgrades, so the token may also come as the access_token query parameter.
func (api *API) OptionalLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			token = r.URL.Query().Get("access_token")
		}
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := api.verifyToken(token)
		if err != nil {
			if errors.Is(err, errTokenExpired) {
				writeErrorResponse(w, err, values.TokenExpired, "token-expired")
				return
			}
			writeErrorResponse(w, err, values.NotAuthorised, "invalid-token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// RequireAdmin must run after RequireLogin.
func (api *API) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !util.IsAdminFromContext(r.Context()) {
			writeErrorResponse(w, errors.New("admin role required"), values.NotAllowed, "admin-only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authorization := strings.Split(r.Header.Get("Authorization"), " ")
	if len(authorization) != 2 || authorization[0] != "Bearer" || authorization[1] == "" {
		return "", false
	}
	return authorization[1], true
}

func withClaims(ctx context.Context, claims *TokenClaims) context.Context {
	ctx = context.WithValue(ctx, values.ContextUserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, values.ContextAdminKey, claims.Role == model.RoleAdmin)
	return logger.WithUserID(ctx, claims.UserID)
}

func (api *API) verifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		if api.Config.JwtSecret == "" {
			return nil, errors.New("jwt secret is not configured")
		}
		return []byte(api.Config.JwtSecret), nil
	})

	var ve *jwt.ValidationError
	if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 && ve.Errors&jwt.ValidationErrorSignatureInvalid == 0 {
		return nil, errTokenExpired
	}
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims", errInvalidToken)
	}

	tokenType, _ := claims["typ"].(string)
	if tokenType != "access" {
		return nil, fmt.Errorf("%w: token type %q", errInvalidToken, tokenType)
	}

	userID, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing subject", errInvalidToken)
	}
	if _, err := util.StringToUUID(userID); err != nil {
		return nil, fmt.Errorf("%w: subject is not a uuid", errInvalidToken)
	}

	role, _ := claims["role"].(string)
	exp, _ := claims["exp"].(float64)

	return &TokenClaims{
		UserID: userID,
		Type:   tokenType,
		Role:   role,
		Exp:    int64(exp),
	}, nil
}
