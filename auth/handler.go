package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/hlog"
)

type contextKey string

const claimsKey = contextKey("claims")

// MakeHandler mounts the authentication routes on a new router.
func MakeHandler(svc Service, tokens TokenVerifier) http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "Authentication Server")
	})
	router.Handler(http.MethodPost, "/api/auth/register", RegisterHandler(svc))
	router.Handler(http.MethodPost, "/api/auth/login", LoginHandler(svc))
	router.Handler(http.MethodPost, "/api/auth/forgot-password", ForgotPasswordHandler(svc))
	router.Handler(http.MethodGet, "/api/auth/me", RequireAuth(tokens, MeHandler()))
	return router
}

func RegisterHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := decodeRequest(r, &req, func(f formValues) {
			req = RegisterRequest{
				Email:    f.Get("email"),
				Password: f.Get("password"),
				Username: f.Get("username"),
				Name:     f.Get("name"),
			}
		}); err != nil {
			encodeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		token, err := svc.Register(r.Context(), req)
		if err != nil {
			encodeError(err, w, r)
			return
		}
		encodeJSON(w, http.StatusOK, map[string]string{"token": token})
	})
}

func LoginHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeRequest(r, &req, func(f formValues) {
			req = LoginRequest{EmailOrUsername: f.Get("emailOrUsername"), Password: f.Get("password")}
		}); err != nil {
			encodeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		token, err := svc.Login(r.Context(), req)
		if err != nil {
			encodeError(err, w, r)
			return
		}
		encodeJSON(w, http.StatusOK, map[string]string{"token": token})
	})
}

func ForgotPasswordHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		if err := decodeRequest(r, &req, func(f formValues) {
			req = resetRequest{EmailOrUsername: f.Get("emailOrUsername")}
		}); err != nil {
			encodeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := svc.InitiatePasswordReset(r.Context(), req.EmailOrUsername); err != nil {
			encodeError(err, w, r)
			return
		}
		encodeMessage(w, http.StatusOK, "Password reset email sent")
	})
}

func MeHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			encodeMessage(w, http.StatusUnauthorized, "Missing auth token")
			return
		}
		encodeJSON(w, http.StatusOK, claims)
	})
}

// RequireAuth rejects requests without a valid bearer token and passes the
// token's claims down through the request context.
func RequireAuth(tokens TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		if header == "" || tokenStr == header {
			encodeMessage(w, http.StatusUnauthorized, "Missing auth token")
			return
		}

		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("rejected bearer token")
			encodeMessage(w, http.StatusUnauthorized, "Invalid auth token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok
}

func encodeError(err error, w http.ResponseWriter, r *http.Request) {
	if ve, ok := IsValidationError(err); ok {
		encodeMessage(w, http.StatusBadRequest, validationMessages[ve.Field])
		return
	}

	switch {
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrDuplicateKey):
		encodeMessage(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, ErrNotFound):
		encodeMessage(w, http.StatusBadRequest, "User not found")
	case errors.Is(err, ErrInvalidCredentials):
		encodeMessage(w, http.StatusBadRequest, "Invalid password")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("authentication request failed")
		encodeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

var validationMessages = map[Field]string{
	FieldEmail:      "Invalid email",
	FieldPassword:   "Invalid password",
	FieldUsername:   "Invalid username",
	FieldIdentifier: "Invalid email or username",
}

type formValues interface {
	Get(key string) string
}

// decodeRequest reads JSON bodies into v and hands urlencoded forms to fromForm.
func decodeRequest(r *http.Request, v interface{}, fromForm func(formValues)) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return err
		}
		fromForm(r.PostForm)
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func encodeMessage(w http.ResponseWriter, code int, msg string) {
	encodeJSON(w, code, map[string]string{"message": msg})
}

func encodeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
