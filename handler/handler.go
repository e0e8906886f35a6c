// Package handler provides a client and handlers for responding to
// authorization requests.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/m-lab/go/rtx"
	log "github.com/sirupsen/logrus"

	"github.com/m-lab/authgate/metrics"
	"github.com/m-lab/authgate/static"
)

// Client contains state needed to answer authorization requests.
type Client struct {
	Authorizer
}

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

// NewClient creates a new client.
func NewClient(a Authorizer) *Client {
	return &Client{
		Authorizer: a,
	}
}

// Authorize writes the decision for the request's Authorization header. Allow
// decisions are returned with 200 and Deny decisions with 403. The body is
// the decision document in both cases.
func (c *Client) Authorize(rw http.ResponseWriter, req *http.Request) {
	setHeaders(rw)
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		rw.Header().Set("Allow", "GET, POST")
		rw.WriteHeader(http.StatusMethodNotAllowed)
		metrics.RequestsTotal.WithLabelValues("authorize", strconv.Itoa(http.StatusMethodNotAllowed)).Inc()
		return
	}

	d := c.Authorizer.Authorize(req.Header.Get(static.AuthorizationHeader))
	status := http.StatusForbidden
	if d.Allowed() {
		status = http.StatusOK
	}
	writeResult(rw, status, d)
	metrics.RequestsTotal.WithLabelValues("authorize", strconv.Itoa(status)).Inc()
}

// Live reports whether the process is up.
func (c *Client) Live(rw http.ResponseWriter, req *http.Request) {
	rw.WriteHeader(http.StatusOK)
}

// Principal writes the subject of a request that passed Protect.
func (c *Client) Principal(rw http.ResponseWriter, req *http.Request) {
	setHeaders(rw)
	p, ok := PrincipalFromContext(req.Context())
	if !ok {
		// Only reachable when the route is not wrapped by Protect.
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeResult(rw, http.StatusOK, &PrincipalResult{PrincipalID: p})
}

// PrincipalResult is returned by Principal.
type PrincipalResult struct {
	PrincipalID string `json:"principalId"`
}

func setHeaders(rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "application/json")
	// Decisions depend on the caller's credential and must not be cached.
	rw.Header().Set("Cache-Control", "no-store")
}

// writeResult marshals the result and writes the result to the response writer.
func writeResult(rw http.ResponseWriter, status int, result interface{}) {
	b, err := json.MarshalIndent(result, "", "  ")
	// Errors are only possible when marshalling incompatible types, like functions.
	rtx.PanicOnError(err, "Failed to format result")
	rw.WriteHeader(status)
	rw.Write(b)
}
