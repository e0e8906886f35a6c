// Package secrets loads verification key material from the Google Cloud
// Secret Manager, Kubernetes Secrets, or local files.
package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
)

// SecretClient wraps the AccessSecretVersion and ListSecretVersions functions
// provided by the secretmanager.Client.
type SecretClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	ListSecretVersions(ctx context.Context, req *secretmanagerpb.ListSecretVersionsRequest, opts ...gax.CallOption) *secretmanager.SecretVersionIterator
}

// iter warps the Next() method of a *secretmanager.SecretVersionIterator.
type iter interface {
	Next(it *secretmanager.SecretVersionIterator) (*secretmanagerpb.SecretVersion, error)
}

// stdIter implements the iter interfaces, and is used to invoke the
// iterator.Next() method.
type stdIter struct{}

// Next invokes the Next() method of a *secretmanager.SecretVersionIterator.
func (s *stdIter) Next(it *secretmanager.SecretVersionIterator) (*secretmanagerpb.SecretVersion, error) {
	return it.Next()
}

// Config contains settings for a secret holding verification keys.
type Config struct {
	iter    iter
	Name    string
	Project string
}

// NewConfig creates a new secret config.
func NewConfig(project, name string) *Config {
	return &Config{
		iter:    &stdIter{},
		Name:    name,
		Project: project,
	}
}

// getSecret fetches the version of a secret specified by 'path' from the Secret
// Manager API.
func (c *Config) getSecret(ctx context.Context, client SecretClient, path string) ([]byte, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: path,
	}

	result, err := client.AccessSecretVersion(ctx, req)
	if err != nil {
		return nil, err
	}
	if result.GetPayload() == nil {
		return nil, fmt.Errorf("secret version has no payload: %s", path)
	}
	return result.Payload.Data, nil
}

// getSecretVersions returns a slice of all *enabled* versions for a secret. It
// will ignore disabled or destroyed versions of a secret.
func (c *Config) getSecretVersions(ctx context.Context, client SecretClient) ([]string, error) {
	req := &secretmanagerpb.ListSecretVersionsRequest{
		Parent:   c.path(),
		PageSize: 1000,
	}

	it := client.ListSecretVersions(ctx, req)
	versions := []string{}
	for {
		resp, err := c.iter.Next(it)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if resp.State != secretmanagerpb.SecretVersion_ENABLED {
			continue
		}
		versions = append(versions, resp.Name)
	}

	if len(versions) < 1 {
		return nil, fmt.Errorf("no versions found for secret: %s", c.Name)
	}

	return versions, nil
}

// LoadKeys fetches all enabled versions of the named secret containing the
// JWT verification keys. Each version is returned as a separate blob so that
// a key rotation can trust the old and new keys at once.
func (c *Config) LoadKeys(ctx context.Context, client SecretClient) ([][]byte, error) {
	versions, err := c.getSecretVersions(ctx, client)
	if err != nil {
		return nil, err
	}
	keys := [][]byte{}
	for _, version := range versions {
		log.WithField("version", version).Info("Loading JWT verification key")
		key, err := c.getSecret(ctx, client, version)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (c *Config) path() string {
	return "projects/" + c.Project + "/secrets/" + c.Name
}
