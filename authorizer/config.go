package authorizer

import (
	"context"
	"flag"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-lab/go/flagx"
	log "github.com/sirupsen/logrus"

	"github.com/m-lab/authgate/auth/jwtverifier"
	"github.com/m-lab/authgate/metrics"
	"github.com/m-lab/authgate/secrets"
	"github.com/m-lab/authgate/static"
)

// Config holds the startup settings of an Authorizer.
type Config struct {
	Keys      secrets.SourceConfig
	Algorithm string
	Issuer    string
	Audience  flagx.StringArray
	ClockSkew time.Duration
}

// RegisterFlags adds the key source and verification flags to fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	c.Keys.RegisterFlags(fs)
	fs.StringVar(&c.Algorithm, "algorithm", static.DefaultAlgorithm, "Signature algorithm tokens must use: RS256, PS256 or ES256")
	fs.StringVar(&c.Issuer, "issuer", "", "Required token issuer; empty accepts any issuer")
	fs.Var(&c.Audience, "audience", "Accepted token audience; may be repeated. Empty accepts any audience")
	fs.DurationVar(&c.ClockSkew, "clock-skew", static.DefaultClockSkew, "Tolerance applied to exp, nbf and iat")
}

// Load reads the trusted keys with retry and builds an Authorizer from them.
func (c *Config) Load(ctx context.Context, b backoff.BackOff) (*Authorizer, error) {
	alg, err := jwtverifier.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return nil, err
	}
	l, err := c.Keys.Loader(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := secrets.LoadWithRetry(ctx, l, b)
	if err != nil {
		return nil, err
	}
	keys, err := jwtverifier.ParseKeys(alg, blobs...)
	if err != nil {
		return nil, err
	}
	v, err := jwtverifier.New(keys,
		jwtverifier.WithAlgorithm(alg),
		jwtverifier.WithIssuer(c.Issuer),
		jwtverifier.WithAudience(c.Audience...),
		jwtverifier.WithClockSkew(c.ClockSkew),
	)
	if err != nil {
		return nil, err
	}
	metrics.TrustedKeys.Set(float64(len(keys)))
	log.WithFields(log.Fields{
		"source":    l.Name(),
		"algorithm": alg,
		"keys":      len(keys),
	}).Info("Loaded trusted verification keys")
	return New(v), nil
}
