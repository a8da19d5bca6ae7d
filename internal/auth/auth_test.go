package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/zulandar/boardsync/internal/config"
)

func newService(secret string) *TokenService {
	return NewTokenService(config.AuthConfig{Secret: secret, Issuer: "boardsync", TokenTTL: time.Hour})
}

func TestIssueResolve(t *testing.T) {
	s := newService("s3cret")
	tok, err := s.Issue(Identity{UserID: "42", Name: "ada"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	id, err := s.Resolve(tok)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.UserID != "42" || id.Name != "ada" {
		t.Errorf("identity = %+v", id)
	}
}

func TestIssue_RequiresUser(t *testing.T) {
	if _, err := newService("x").Issue(Identity{}); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestResolve_Rejects(t *testing.T) {
	s := newService("s3cret")
	good, _ := s.Issue(Identity{UserID: "1"})

	expired := newService("s3cret")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _ := expired.Issue(Identity{UserID: "1"})

	otherIssuer := NewTokenService(config.AuthConfig{Secret: "s3cret", Issuer: "someone-else", TokenTTL: time.Hour})
	foreign, _ := otherIssuer.Issue(Identity{UserID: "1"})

	forged, _ := newService("wrong").Issue(Identity{UserID: "1"})

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "iss": "boardsync"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", stale},
		{"wrong issuer", foreign},
		{"wrong secret", forged},
		{"alg none", unsigned},
		{"truncated", good[:len(good)-4]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Resolve(tt.token)
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("err = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		url    string
		want   string
	}{
		{"header", "Bearer abc", "/", "abc"},
		{"lowercase scheme", "bearer abc", "/", "abc"},
		{"wrong scheme", "Basic abc", "/?token=q", ""},
		{"query fallback", "", "/ws?token=q", "q"},
		{"none", "", "/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := BearerToken(r); got != tt.want {
				t.Errorf("BearerToken = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newService("s3cret")
	r := gin.New()
	r.Use(Middleware(s))
	r.GET("/me", func(c *gin.Context) {
		id, _ := FromContext(c)
		c.JSON(http.StatusOK, id)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
	if w.Body.String() != `{"error":"unauthorized"}` {
		t.Errorf("body = %s", w.Body.String())
	}

	tok, _ := s.Issue(Identity{UserID: "7", Name: "bob"})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != `{"userId":"7","name":"bob"}` {
		t.Errorf("body = %s", w.Body.String())
	}
}
