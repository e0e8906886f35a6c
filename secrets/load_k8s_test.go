package secrets

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestKubernetesConfig_LoadKeys(t *testing.T) {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "authgate", Namespace: "auth"},
		Data: map[string][]byte{
			"verify.pem": []byte("pem-data"),
			"empty":      {},
		},
	}
	client := fake.NewSimpleClientset(secret)

	tests := []struct {
		name    string
		cfg     *KubernetesConfig
		want    string
		wantErr bool
	}{
		{
			name: "success",
			cfg:  NewKubernetesConfig("auth", "authgate", "verify.pem"),
			want: "pem-data",
		},
		{
			name:    "error-missing-key",
			cfg:     NewKubernetesConfig("auth", "authgate", "other.pem"),
			wantErr: true,
		},
		{
			name:    "error-empty-key",
			cfg:     NewKubernetesConfig("auth", "authgate", "empty"),
			wantErr: true,
		},
		{
			name:    "error-missing-secret",
			cfg:     NewKubernetesConfig("auth", "does-not-exist", "verify.pem"),
			wantErr: true,
		},
		{
			name:    "error-wrong-namespace",
			cfg:     NewKubernetesConfig("default", "authgate", "verify.pem"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.LoadKeys(context.Background(), client)
			if (err != nil) != tt.wantErr {
				t.Fatalf("KubernetesConfig.LoadKeys() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (len(got) != 1 || string(got[0]) != tt.want) {
				t.Errorf("KubernetesConfig.LoadKeys() = %q, want [%q]", got, tt.want)
			}
		})
	}
}
