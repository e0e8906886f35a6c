// Package client requests authorization decisions from a running gate.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	v1 "github.com/m-lab/authgate/api/v1"
	"github.com/m-lab/authgate/bearer"
	"github.com/m-lab/authgate/static"
)

// ErrNoContent is returned when the gate returns http.StatusNoContent.
var ErrNoContent = errors.New("no content from server")

// UnmarshalResponse reads the response from the given request and unmarshals
// the value into the given result.
func UnmarshalResponse(req *http.Request, result interface{}) (*http.Response, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode == http.StatusNoContent {
		// Cannot unmarshal empty content.
		return resp, ErrNoContent
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}
	return resp, json.Unmarshal(b, result)
}

// Authorize asks the gate at url for a decision on token. The HTTP status is
// returned alongside the decision; a Deny is not an error.
func Authorize(ctx context.Context, url, token string) (*v1.Decision, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set(static.AuthorizationHeader, bearer.Scheme+" "+token)
	d := &v1.Decision{}
	resp, err := UnmarshalResponse(req, d)
	if err != nil {
		return nil, 0, err
	}
	return d, resp.StatusCode, nil
}
