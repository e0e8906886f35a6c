// Package authorizer turns an Authorization header into an access decision.
package authorizer

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	v1 "github.com/m-lab/authgate/api/v1"
	"github.com/m-lab/authgate/auth/autherr"
	"github.com/m-lab/authgate/auth/jwtverifier"
	"github.com/m-lab/authgate/bearer"
	"github.com/m-lab/authgate/metrics"
)

// reasonOK labels Allow decisions in metrics.
const reasonOK = "OK"

// TokenVerifier verifies a bare token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*jwtverifier.Claims, error)
}

// Authorizer makes allow/deny decisions. It holds no per-call state and is
// safe for concurrent use.
type Authorizer struct {
	verifier TokenVerifier
}

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

// New creates an Authorizer. A nil verifier denies every request with
// KeyUnavailable.
func New(v TokenVerifier) *Authorizer {
	return &Authorizer{verifier: v}
}

// Authorize returns the decision for the given Authorization header. It never
// fails: every error becomes a Deny decision and an error log entry naming
// only the failure kind.
func (a *Authorizer) Authorize(header string) *v1.Decision {
	start := time.Now()
	logger := log.WithField("request_id", uuid.NewString())
	logger.WithField("header_present", header != "").Info("Authorizing a user")

	var d *v1.Decision
	reason := reasonOK
	claims, err := a.verify(header)
	if err != nil {
		kind := autherr.KindOf(err)
		reason = string(kind)
		logger.WithField("reason", kind).Error("User not authorized")
		d = v1.NewDeny()
	} else {
		logger.WithField("subject", claims.Subject).Info("User was authorized")
		d = v1.NewAllow(claims.Subject)
	}

	effect := string(d.Effect())
	metrics.DecisionsTotal.WithLabelValues(effect, reason).Inc()
	metrics.DecisionDuration.WithLabelValues(effect).Observe(time.Since(start).Seconds())
	return d
}

// verify runs extraction and verification. A nil error guarantees claims
// with a non-empty subject.
func (a *Authorizer) verify(header string) (*jwtverifier.Claims, error) {
	token, err := bearer.Extract(header)
	if err != nil {
		return nil, err
	}
	if a.verifier == nil {
		return nil, autherr.ErrKeyUnavailable
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims == nil || claims.Subject == "" {
		return nil, autherr.Errorf(autherr.ClaimsMalformed, "verifier returned no subject")
	}
	return claims, nil
}
