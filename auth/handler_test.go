package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type HandlerTestSuite struct {
	suite.Suite
	handler http.Handler
	tokens  *TokenIssuer
	sent    *notifierSpy
}

func (s *HandlerTestSuite) SetupTest() {
	s.sent = &notifierSpy{}
	var svc Service
	svc, s.tokens = newTestService(s.T(), NewAccountRepository(), s.sent)
	s.handler = MakeHandler(svc, s.tokens)
}

func (s *HandlerTestSuite) do(method, path, contentType, body string) (*httptest.ResponseRecorder, map[string]string) {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)

	res := map[string]string{}
	_ = json.NewDecoder(w.Body).Decode(&res)
	return w, res
}

func (s *HandlerTestSuite) post(path, body string) (*httptest.ResponseRecorder, map[string]string) {
	return s.do(http.MethodPost, path, "application/json", body)
}

func (s *HandlerTestSuite) TestBanner() {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)

	body, _ := io.ReadAll(w.Body)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("Authentication Server", string(body))
}

func (s *HandlerTestSuite) TestRegister() {
	tests := []struct {
		req, wantMsg string
		wantCode     int
		wantToken    bool
	}{
		{req: `invalid request`, wantCode: http.StatusBadRequest, wantMsg: "Invalid request body"},
		{req: `{"email":"a@bcom","password":"Abcdef1!","username":"ab1"}`, wantCode: http.StatusBadRequest, wantMsg: "Invalid email"},
		{req: `{"email":"a@b.com","password":"Abcdef1","username":"ab1"}`, wantCode: http.StatusBadRequest, wantMsg: "Invalid password"},
		{req: `{"email":"a@b.com","password":"Abcdef1!","username":"A"}`, wantCode: http.StatusBadRequest, wantMsg: "Invalid username"},
		{req: `{"email":"a@b.com","password":"Abcdef1!","username":"ab1"}`, wantCode: http.StatusOK, wantToken: true},
		{req: `{"email":"a@b.com","password":"Abcdef1!","username":"ab2"}`, wantCode: http.StatusBadRequest, wantMsg: "User already exists"},
		{req: `{"email":"c@d.com","password":"Abcdef1!","username":"ab1"}`, wantCode: http.StatusBadRequest, wantMsg: "User already exists"},
	}

	for _, tt := range tests {
		w, res := s.post("/api/auth/register", tt.req)

		s.Equal(tt.wantCode, w.Code, tt.req)
		s.Equal("application/json", w.Header().Get("Content-Type"))
		s.Equal(tt.wantMsg, res["message"])
		if tt.wantToken {
			claims, err := s.tokens.Verify(res["token"])
			s.NoError(err)
			s.Equal(Claims{Username: "ab1", Email: "a@b.com"}, claims)
		}
	}
}

func (s *HandlerTestSuite) TestRegisterWithForm() {
	form := url.Values{"email": {"a@b.com"}, "password": {"Abcdef1!"}, "username": {"ab1"}}

	w, res := s.do(http.MethodPost, "/api/auth/register", "application/x-www-form-urlencoded", form.Encode())

	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(res["token"])
}

func (s *HandlerTestSuite) TestLogin() {
	w, _ := s.post("/api/auth/register", `{"email":"a@b.com","password":"Abcdef1!","username":"ab1"}`)
	s.Require().Equal(http.StatusOK, w.Code)

	tests := []struct {
		req, wantMsg string
		wantCode     int
	}{
		{req: `{"emailOrUsername":"ab1","password":"Abcdef1!"}`, wantCode: http.StatusOK},
		{req: `{"emailOrUsername":"a@b.com","password":"Abcdef1!"}`, wantCode: http.StatusOK},
		{req: `{"emailOrUsername":"ab1","password":"wrong"}`, wantCode: http.StatusBadRequest, wantMsg: "Invalid password"},
		{req: `{"emailOrUsername":"nouser","password":"Abcdef1!"}`, wantCode: http.StatusBadRequest, wantMsg: "User not found"},
		{req: `{"emailOrUsername":"!!!","password":"Abcdef1!"}`, wantCode: http.StatusBadRequest, wantMsg: "Invalid email or username"},
		{req: `{`, wantCode: http.StatusBadRequest, wantMsg: "Invalid request body"},
	}

	for _, tt := range tests {
		w, res := s.post("/api/auth/login", tt.req)

		s.Equal(tt.wantCode, w.Code, tt.req)
		s.Equal(tt.wantMsg, res["message"])
		if tt.wantCode == http.StatusOK {
			_, err := s.tokens.Verify(res["token"])
			s.NoError(err)
		}
	}
}

func (s *HandlerTestSuite) TestForgotPassword() {
	_, _ = s.post("/api/auth/register", `{"email":"a@b.com","password":"Abcdef1!","username":"ab1"}`)

	w, res := s.post("/api/auth/forgot-password", `{"emailOrUsername":"a@b.com"}`)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("Password reset email sent", res["message"])
	s.Len(s.sent.sent, 1)

	w, res = s.post("/api/auth/forgot-password", `{"emailOrUsername":"nouser"}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("User not found", res["message"])
	s.Len(s.sent.sent, 1)
}

func (s *HandlerTestSuite) TestMe() {
	_, reg := s.post("/api/auth/register", `{"email":"a@b.com","password":"Abcdef1!","username":"ab1"}`)

	tests := []struct {
		header   string
		wantCode int
	}{
		{"", http.StatusUnauthorized},
		{reg["token"], http.StatusUnauthorized},
		{"Bearer garbage", http.StatusUnauthorized},
		{"Bearer " + reg["token"], http.StatusOK},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, r)

		s.Equal(tt.wantCode, w.Code)
		if tt.wantCode == http.StatusOK {
			var claims Claims
			s.NoError(json.NewDecoder(w.Body).Decode(&claims))
			s.Equal(Claims{Username: "ab1", Email: "a@b.com"}, claims)
		}
	}
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func TestEncodeErrorHidesInternals(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/auth/register", nil)

	encodeError(errors.New("pq: connection to 10.0.0.5 refused"), w, r)

	var res map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", res["message"])
}

func TestEncodeErrorDuplicateKey(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/auth/register", nil)

	encodeError(ErrDuplicateKey, w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "User already exists")
}

func TestClaimsFromContext(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	assert.False(t, ok)

	ctx := context.WithValue(context.Background(), claimsKey, Claims{Username: "ab1"})
	c, ok := ClaimsFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ab1", c.Username)
}
