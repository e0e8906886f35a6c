package secrets

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// KubernetesConfig names a key inside a Kubernetes Secret.
type KubernetesConfig struct {
	Namespace string
	Name      string
	Key       string
}

// NewKubernetesConfig creates a new Kubernetes secret config.
func NewKubernetesConfig(namespace, name, key string) *KubernetesConfig {
	return &KubernetesConfig{
		Namespace: namespace,
		Name:      name,
		Key:       key,
	}
}

// LoadKeys reads the configured key of the Secret.
func (c *KubernetesConfig) LoadKeys(ctx context.Context, client kubernetes.Interface) ([][]byte, error) {
	s, err := client.CoreV1().Secrets(c.Namespace).Get(ctx, c.Name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	data, ok := s.Data[c.Key]
	if !ok || len(data) == 0 {
		return nil, fmt.Errorf("secret %s/%s has no data for key %q", c.Namespace, c.Name, c.Key)
	}
	return [][]byte{data}, nil
}
