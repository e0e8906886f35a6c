// Package static contains static information for the authorization gate.
package static

import "time"

// Constants used by the gate and the tools that exercise it.
const (
	// AuthorizationHeader carries the bearer credential on HTTP requests.
	AuthorizationHeader = "Authorization"

	// DefaultAlgorithm is the signature algorithm tokens are pinned to unless
	// configured otherwise.
	DefaultAlgorithm = "RS256"

	// DefaultClockSkew is the tolerance applied to exp, nbf and iat.
	DefaultClockSkew = time.Duration(0)

	// Startup key loading backoff. Key sources are only read at process start,
	// so retries are bounded and the process exits if keys stay unavailable.
	BackoffInitialInterval     = time.Second
	BackoffRandomizationFactor = 0.5
	BackoffMultiplier          = 2
	BackoffMaxInterval         = 30 * time.Second
	BackoffMaxElapsedTime      = 2 * time.Minute

	// HTTP server timeouts.
	ReadHeaderTimeout = 5 * time.Second
	WriteTimeout      = 10 * time.Second
	IdleTimeout       = 2 * time.Minute

	// MintTokenExpiry is the default lifetime of tokens signed by mint-token.
	MintTokenExpiry = time.Hour
)
