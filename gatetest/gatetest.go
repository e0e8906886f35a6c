// Package gatetest runs an authorization gate for tests of its callers.
package gatetest

import (
	"log"
	"net/http"
	"net/http/httptest"
	"strings"

	v1 "github.com/m-lab/authgate/api/v1"
	"github.com/m-lab/authgate/handler"
)

// Authorizer is a fake handler.Authorizer. Tokens listed in Subjects are
// allowed as the mapped subject; everything else is denied.
type Authorizer struct {
	Subjects map[string]string
}

// Authorize returns an Allow for known tokens and a Deny otherwise.
func (a *Authorizer) Authorize(header string) *v1.Decision {
	tok := strings.TrimPrefix(header, "Bearer ")
	if sub, ok := a.Subjects[tok]; ok && tok != header {
		return v1.NewAllow(sub)
	}
	return v1.NewDeny()
}

// NewGateServer creates an httptest.Server answering gate requests with a.
// Useful for unit testing.
func NewGateServer(a handler.Authorizer) *httptest.Server {
	c := handler.NewClient(a)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/authorize", c.Authorize)
	mux.Handle("/v1/principal", c.Protect(http.HandlerFunc(c.Principal)))

	srv := httptest.NewServer(mux)
	log.Println("Listening for authorization requests on " + srv.URL)
	return srv
}
