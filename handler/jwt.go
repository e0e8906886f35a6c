package handler

import (
	"context"
	"net/http"
	"strconv"

	v1 "github.com/m-lab/authgate/api/v1"
	"github.com/m-lab/authgate/metrics"
	"github.com/m-lab/authgate/static"
)

// Authorizer turns an Authorization header value into a decision.
type Authorizer interface {
	Authorize(header string) *v1.Decision
}

type principalKey struct{}

// Protect returns a handler that only calls next for requests carrying a
// token the Authorizer allows. The verified subject is available to next via
// PrincipalFromContext. Denied requests receive 401 with a Bearer challenge.
func (c *Client) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		d := c.Authorizer.Authorize(req.Header.Get(static.AuthorizationHeader))
		if !d.Allowed() {
			rw.Header().Set("WWW-Authenticate", "Bearer")
			rw.WriteHeader(http.StatusUnauthorized)
			metrics.RequestsTotal.WithLabelValues("protect", strconv.Itoa(http.StatusUnauthorized)).Inc()
			return
		}
		metrics.RequestsTotal.WithLabelValues("protect", strconv.Itoa(http.StatusOK)).Inc()
		ctx := context.WithValue(req.Context(), principalKey{}, d.PrincipalID)
		next.ServeHTTP(rw, req.WithContext(ctx))
	})
}

// PrincipalFromContext returns the subject stored by Protect.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey{}).(string)
	return p, ok
}
