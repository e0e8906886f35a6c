package secrets

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/compute/metadata"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/m-lab/authgate/auth/autherr"
	"github.com/m-lab/authgate/metrics"
	"github.com/m-lab/authgate/static"
)

// Names of the supported key sources.
const (
	SourceInline        = "inline"
	SourceFile          = "file"
	SourceSecretManager = "secretmanager"
	SourceKubernetes    = "kubernetes"
)

// Loader returns raw verification key blobs.
type Loader interface {
	Name() string
	Load(ctx context.Context) ([][]byte, error)
}

type loader struct {
	name string
	load func(ctx context.Context) ([][]byte, error)
}

func (l *loader) Name() string { return l.name }

func (l *loader) Load(ctx context.Context) ([][]byte, error) { return l.load(ctx) }

// NewLoader returns a Loader named name that calls load.
func NewLoader(name string, load func(ctx context.Context) ([][]byte, error)) Loader {
	return &loader{name: name, load: load}
}

// SourceConfig selects where verification keys come from.
type SourceConfig struct {
	Source        string
	VerifyKey     string
	VerifyKeyFile string
	Project       string
	SecretName    string
	K8sNamespace  string
	K8sSecret     string
	K8sSecretKey  string
}

// RegisterFlags adds the key source flags to fs.
func (c *SourceConfig) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Source, "key-source", SourceFile, "Where to load the verification key from: inline, file, secretmanager or kubernetes")
	fs.StringVar(&c.VerifyKey, "verify-key", "", "Inline PEM or JWK verification key, used with -key-source=inline")
	fs.StringVar(&c.VerifyKeyFile, "verify-key-file", "", "Path to a PEM, JWK or JWKS verification key file, used with -key-source=file")
	fs.StringVar(&c.Project, "project", "", "GCP project of the secret; defaults to the project of the metadata server")
	fs.StringVar(&c.SecretName, "secret-name", "", "Secret Manager secret holding the verification key versions")
	fs.StringVar(&c.K8sNamespace, "k8s-namespace", "default", "Namespace of the Kubernetes Secret")
	fs.StringVar(&c.K8sSecret, "k8s-secret", "", "Name of the Kubernetes Secret holding the verification key")
	fs.StringVar(&c.K8sSecretKey, "k8s-secret-key", "verify.pem", "Data key of the verification key in the Kubernetes Secret")
}

// Validate reports every inconsistency in the configuration at once.
func (c *SourceConfig) Validate() error {
	var result *multierror.Error
	switch c.Source {
	case SourceInline:
		if c.VerifyKey == "" {
			result = multierror.Append(result, errors.New("-verify-key is required with -key-source=inline"))
		}
	case SourceFile:
		if c.VerifyKeyFile == "" {
			result = multierror.Append(result, errors.New("-verify-key-file is required with -key-source=file"))
		}
	case SourceSecretManager:
		if c.SecretName == "" {
			result = multierror.Append(result, errors.New("-secret-name is required with -key-source=secretmanager"))
		}
	case SourceKubernetes:
		if c.K8sSecret == "" {
			result = multierror.Append(result, errors.New("-k8s-secret is required with -key-source=kubernetes"))
		}
		if c.K8sSecretKey == "" {
			result = multierror.Append(result, errors.New("-k8s-secret-key is required with -key-source=kubernetes"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown key source %q", c.Source))
	}
	return result.ErrorOrNil()
}

// Loader builds a Loader for the configured source. Clients for remote
// sources are created here; the loader closes nothing it did not open.
func (c *SourceConfig) Loader(ctx context.Context) (Loader, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Source {
	case SourceInline:
		key := []byte(c.VerifyKey)
		return NewLoader(SourceInline, func(context.Context) ([][]byte, error) {
			return [][]byte{key}, nil
		}), nil
	case SourceFile:
		cfg := NewLocalConfig()
		return NewLoader(SourceFile, func(ctx context.Context) ([][]byte, error) {
			keys, err := cfg.LoadKeys(ctx, c.VerifyKeyFile)
			if errors.Is(err, os.ErrNotExist) {
				return nil, backoff.Permanent(err)
			}
			return keys, err
		}), nil
	case SourceSecretManager:
		project := c.Project
		if project == "" {
			p, err := metadata.ProjectIDWithContext(ctx)
			if err != nil {
				return nil, fmt.Errorf("-project not given and metadata server unavailable: %w", err)
			}
			project = p
		}
		cfg := NewConfig(project, c.SecretName)
		return NewLoader(SourceSecretManager, func(ctx context.Context) ([][]byte, error) {
			client, err := secretmanager.NewClient(ctx)
			if err != nil {
				return nil, err
			}
			defer client.Close()
			return cfg.LoadKeys(ctx, client)
		}), nil
	case SourceKubernetes:
		restConfig, err := rest.InClusterConfig()
		if err != nil {
			return nil, err
		}
		clientset, err := kubernetes.NewForConfig(restConfig)
		if err != nil {
			return nil, err
		}
		cfg := NewKubernetesConfig(c.K8sNamespace, c.K8sSecret, c.K8sSecretKey)
		return NewLoader(SourceKubernetes, func(ctx context.Context) ([][]byte, error) {
			return cfg.LoadKeys(ctx, clientset)
		}), nil
	}
	// Unreachable after Validate.
	return nil, fmt.Errorf("unknown key source %q", c.Source)
}

// NewBackOff returns the exponential backoff used for startup key loading.
func NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = static.BackoffInitialInterval
	b.RandomizationFactor = static.BackoffRandomizationFactor
	b.Multiplier = static.BackoffMultiplier
	b.MaxInterval = static.BackoffMaxInterval
	b.MaxElapsedTime = static.BackoffMaxElapsedTime
	return b
}

// LoadWithRetry calls l until it succeeds, b stops, or ctx is done. A final
// failure is returned as a KeyUnavailable error.
func LoadWithRetry(ctx context.Context, l Loader, b backoff.BackOff) ([][]byte, error) {
	var keys [][]byte
	op := func() error {
		k, err := l.Load(ctx)
		if err != nil {
			metrics.KeyLoadsTotal.WithLabelValues(l.Name(), "error").Inc()
			return err
		}
		if len(k) == 0 {
			metrics.KeyLoadsTotal.WithLabelValues(l.Name(), "empty").Inc()
			return errors.New("no key material")
		}
		keys = k
		return nil
	}
	notify := func(err error, d time.Duration) {
		log.WithFields(log.Fields{
			"source": l.Name(),
			"retry":  d.String(),
		}).WithError(err).Warn("Failed to load verification keys")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, autherr.New(autherr.KeyUnavailable, fmt.Errorf("loading keys from %s: %w", l.Name(), err))
	}
	metrics.KeyLoadsTotal.WithLabelValues(l.Name(), "OK").Inc()
	return keys, nil
}
