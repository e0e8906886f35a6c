// Package bearer extracts bearer credentials from Authorization headers.
package bearer

import (
	"strings"

	"github.com/m-lab/authgate/auth/autherr"
)

// Scheme is the authorization scheme accepted by Extract. It is matched
// case-insensitively.
const Scheme = "Bearer"

// Extract returns the credential from an Authorization header of the form
// "Bearer <token>". The header must contain exactly two fields separated by a
// single space; the credential is returned verbatim.
func Extract(header string) (string, error) {
	if header == "" {
		return "", autherr.ErrMissingHeader
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(Scheme)+" ") {
		return "", autherr.Errorf(autherr.MalformedHeader, "scheme must be %s", Scheme)
	}
	fields := strings.Split(header, " ")
	if len(fields) != 2 || fields[1] == "" {
		return "", autherr.Errorf(autherr.MalformedHeader, "want 2 fields, got %d", len(fields))
	}
	return fields[1], nil
}
