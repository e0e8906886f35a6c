package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-test/deep"
	"github.com/m-lab/go/rtx"
	log "github.com/sirupsen/logrus"

	v1 "github.com/m-lab/authgate/api/v1"
	"github.com/m-lab/authgate/auth/jwtverifier"
	"github.com/m-lab/authgate/authorizer"
	"github.com/m-lab/authgate/authtest"
)

func init() {
	// Disable most logs for unit tests.
	log.SetLevel(log.FatalLevel)
}

type fakeAuthorizer struct {
	decision *v1.Decision
	headers  []string
}

func (f *fakeAuthorizer) Authorize(header string) *v1.Decision {
	f.headers = append(f.headers, header)
	return f.decision
}

func mustAuthorizer(t *testing.T) *authorizer.Authorizer {
	t.Helper()
	keys, err := jwtverifier.ParseKeys(jose.RS256, authtest.PublicKeyPEM(authtest.RSAKey(0)))
	rtx.Must(err, "failed to parse keys")
	v, err := jwtverifier.New(keys)
	rtx.Must(err, "failed to create verifier")
	return authorizer.New(v)
}

func TestClient_Authorize(t *testing.T) {
	now := time.Now()
	valid := authtest.MustSign(authtest.RSAKey(0), jose.RS256, "", authtest.Claims("auth0|12345", now, time.Hour))
	expired := authtest.MustSign(authtest.RSAKey(0), jose.RS256, "", authtest.Claims("auth0|12345", now, -time.Hour))
	forged := authtest.MustSign(authtest.RSAKey(1), jose.RS256, "", authtest.Claims("auth0|12345", now, time.Hour))

	tests := []struct {
		name       string
		method     string
		header     string
		wantStatus int
		want       *v1.Decision
	}{
		{
			name:       "allow-get",
			method:     http.MethodGet,
			header:     "Bearer " + valid,
			wantStatus: http.StatusOK,
			want:       v1.NewAllow("auth0|12345"),
		},
		{
			name:       "allow-post",
			method:     http.MethodPost,
			header:     "Bearer " + valid,
			wantStatus: http.StatusOK,
			want:       v1.NewAllow("auth0|12345"),
		},
		{
			name:       "deny-expired",
			method:     http.MethodGet,
			header:     "Bearer " + expired,
			wantStatus: http.StatusForbidden,
			want:       v1.NewDeny(),
		},
		{
			name:       "deny-forged",
			method:     http.MethodGet,
			header:     "Bearer " + forged,
			wantStatus: http.StatusForbidden,
			want:       v1.NewDeny(),
		},
		{
			name:       "deny-missing-header",
			method:     http.MethodGet,
			wantStatus: http.StatusForbidden,
			want:       v1.NewDeny(),
		},
		{
			name:       "deny-wrong-scheme",
			method:     http.MethodGet,
			header:     "token abc",
			wantStatus: http.StatusForbidden,
			want:       v1.NewDeny(),
		},
		{
			name:       "error-method",
			method:     http.MethodDelete,
			header:     "Bearer " + valid,
			wantStatus: http.StatusMethodNotAllowed,
		},
	}
	c := NewClient(mustAuthorizer(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/authorize", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rw := httptest.NewRecorder()
			c.Authorize(rw, req)

			if rw.Code != tt.wantStatus {
				t.Errorf("Authorize() status = %d, want %d", rw.Code, tt.wantStatus)
			}
			if rw.Header().Get("Cache-Control") != "no-store" {
				t.Errorf("Authorize() Cache-Control = %q, want no-store", rw.Header().Get("Cache-Control"))
			}
			if tt.want == nil {
				return
			}
			if ct := rw.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Authorize() Content-Type = %q", ct)
			}
			got := &v1.Decision{}
			err := json.Unmarshal(rw.Body.Bytes(), got)
			rtx.Must(err, "failed to unmarshal decision")
			if diff := deep.Equal(got, tt.want); diff != nil {
				t.Errorf("Authorize() decision diff = %v", diff)
			}
		})
	}
}

func TestClient_AuthorizeDenyBodiesMatch(t *testing.T) {
	c := NewClient(mustAuthorizer(t))
	var bodies []string
	for _, h := range []string{"", "token abc", "Bearer a.b.c"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/authorize", nil)
		req.Header.Set("Authorization", h)
		rw := httptest.NewRecorder()
		c.Authorize(rw, req)
		bodies = append(bodies, rw.Body.String())
	}
	for i := range bodies {
		if bodies[i] != bodies[0] {
			t.Errorf("deny body %d = %s, want %s", i, bodies[i], bodies[0])
		}
	}
}

func TestClient_Protect(t *testing.T) {
	tests := []struct {
		name          string
		decision      *v1.Decision
		header        string
		wantStatus    int
		wantPrincipal string
		wantNext      bool
	}{
		{
			name:          "allow",
			decision:      v1.NewAllow("auth0|12345"),
			header:        "Bearer token",
			wantStatus:    http.StatusTeapot,
			wantPrincipal: "auth0|12345",
			wantNext:      true,
		},
		{
			name:       "deny",
			decision:   v1.NewDeny(),
			header:     "Bearer token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "deny-nil-decision",
			decision:   nil,
			wantStatus: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAuthorizer{decision: tt.decision}
			c := NewClient(fa)
			called := false
			var principal string
			next := http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
				called = true
				principal, _ = PrincipalFromContext(req.Context())
				rw.WriteHeader(http.StatusTeapot)
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", tt.header)
			rw := httptest.NewRecorder()
			c.Protect(next).ServeHTTP(rw, req)

			if rw.Code != tt.wantStatus {
				t.Errorf("Protect() status = %d, want %d", rw.Code, tt.wantStatus)
			}
			if called != tt.wantNext {
				t.Errorf("Protect() called next = %t, want %t", called, tt.wantNext)
			}
			if principal != tt.wantPrincipal {
				t.Errorf("PrincipalFromContext() = %q, want %q", principal, tt.wantPrincipal)
			}
			if !tt.wantNext && !strings.HasPrefix(rw.Header().Get("WWW-Authenticate"), "Bearer") {
				t.Errorf("Protect() WWW-Authenticate = %q, want Bearer", rw.Header().Get("WWW-Authenticate"))
			}
			if len(fa.headers) != 1 || fa.headers[0] != tt.header {
				t.Errorf("Protect() passed headers %q, want [%q]", fa.headers, tt.header)
			}
		})
	}
}

func TestPrincipalFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p, ok := PrincipalFromContext(req.Context()); ok || p != "" {
		t.Errorf("PrincipalFromContext() = %q, %t, want empty, false", p, ok)
	}
}

func TestClient_Live(t *testing.T) {
	c := NewClient(&fakeAuthorizer{})
	rw := httptest.NewRecorder()
	c.Live(rw, httptest.NewRequest(http.MethodGet, "/v1/live", nil))
	if rw.Code != http.StatusOK {
		t.Errorf("Live() status = %d, want %d", rw.Code, http.StatusOK)
	}
}

func TestClient_Principal(t *testing.T) {
	c := NewClient(&fakeAuthorizer{decision: v1.NewAllow("auth0|12345")})

	rw := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/principal", nil)
	c.Protect(http.HandlerFunc(c.Principal)).ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("Principal() status = %d, want %d", rw.Code, http.StatusOK)
	}
	got := &PrincipalResult{}
	rtx.Must(json.Unmarshal(rw.Body.Bytes(), got), "failed to unmarshal result")
	if got.PrincipalID != "auth0|12345" {
		t.Errorf("Principal() = %q, want %q", got.PrincipalID, "auth0|12345")
	}

	rw = httptest.NewRecorder()
	c.Principal(rw, req)
	if rw.Code != http.StatusInternalServerError {
		t.Errorf("Principal() without Protect status = %d, want %d", rw.Code, http.StatusInternalServerError)
	}
}
