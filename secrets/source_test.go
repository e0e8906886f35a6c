package secrets

import (
	"context"
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/authgate/auth/autherr"
)

func TestSourceConfig_RegisterFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c := &SourceConfig{}
	c.RegisterFlags(fs)
	err := fs.Parse([]string{"-key-source=kubernetes", "-k8s-secret=authgate"})
	rtx.Must(err, "failed to parse flags")

	want := SourceConfig{
		Source:       SourceKubernetes,
		K8sNamespace: "default",
		K8sSecret:    "authgate",
		K8sSecretKey: "verify.pem",
	}
	if *c != want {
		t.Errorf("RegisterFlags() parsed %+v, want %+v", *c, want)
	}
}

func TestSourceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SourceConfig
		wantErr bool
	}{
		{
			name: "success-inline",
			cfg:  SourceConfig{Source: SourceInline, VerifyKey: "pem"},
		},
		{
			name: "success-file",
			cfg:  SourceConfig{Source: SourceFile, VerifyKeyFile: "testdata/verify.pem"},
		},
		{
			name: "success-secretmanager",
			cfg:  SourceConfig{Source: SourceSecretManager, SecretName: "authgate-verify"},
		},
		{
			name: "success-kubernetes",
			cfg:  SourceConfig{Source: SourceKubernetes, K8sSecret: "authgate", K8sSecretKey: "verify.pem"},
		},
		{
			name:    "error-inline-empty",
			cfg:     SourceConfig{Source: SourceInline},
			wantErr: true,
		},
		{
			name:    "error-file-empty",
			cfg:     SourceConfig{Source: SourceFile},
			wantErr: true,
		},
		{
			name:    "error-secretmanager-no-name",
			cfg:     SourceConfig{Source: SourceSecretManager},
			wantErr: true,
		},
		{
			name:    "error-kubernetes-no-secret",
			cfg:     SourceConfig{Source: SourceKubernetes},
			wantErr: true,
		},
		{
			name:    "error-unknown-source",
			cfg:     SourceConfig{Source: "vault"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSourceConfig_Loader(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfg      SourceConfig
		wantName string
		want     int
		wantErr  bool
	}{
		{
			name:     "inline",
			cfg:      SourceConfig{Source: SourceInline, VerifyKey: "pem"},
			wantName: SourceInline,
			want:     1,
		},
		{
			name:     "file",
			cfg:      SourceConfig{Source: SourceFile, VerifyKeyFile: "testdata/verify.pem"},
			wantName: SourceFile,
			want:     1,
		},
		{
			name:    "error-invalid",
			cfg:     SourceConfig{Source: "vault"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := tt.cfg.Loader(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Loader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if l.Name() != tt.wantName {
				t.Errorf("Loader().Name() = %q, want %q", l.Name(), tt.wantName)
			}
			keys, err := l.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(keys) != tt.want {
				t.Errorf("Load() = %d blobs, want %d", len(keys), tt.want)
			}
		})
	}
}

func TestLoadWithRetry(t *testing.T) {
	fail := errors.New("unavailable")

	tests := []struct {
		name      string
		failures  int
		permanent bool
		empty     bool
		retries   uint64
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "success-first-try",
			retries:   3,
			wantCalls: 1,
		},
		{
			name:      "success-after-failures",
			failures:  2,
			retries:   3,
			wantCalls: 3,
		},
		{
			name:      "error-retries-exhausted",
			failures:  10,
			retries:   2,
			wantCalls: 3,
			wantErr:   true,
		},
		{
			name:      "error-permanent",
			failures:  10,
			permanent: true,
			retries:   5,
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "error-empty",
			empty:     true,
			retries:   1,
			wantCalls: 2,
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			l := NewLoader("fake", func(context.Context) ([][]byte, error) {
				calls++
				if tt.empty {
					return nil, nil
				}
				if calls <= tt.failures {
					if tt.permanent {
						return nil, backoff.Permanent(fail)
					}
					return nil, fail
				}
				return [][]byte{[]byte("key")}, nil
			})
			b := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, tt.retries)
			keys, err := LoadWithRetry(context.Background(), l, b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadWithRetry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("LoadWithRetry() made %d calls, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr {
				if !errors.Is(err, autherr.ErrKeyUnavailable) {
					t.Errorf("LoadWithRetry() error = %v, want KeyUnavailable", err)
				}
				return
			}
			if len(keys) != 1 {
				t.Errorf("LoadWithRetry() = %d blobs, want 1", len(keys))
			}
		})
	}
}

func TestLoadWithRetry_MissingFileIsPermanent(t *testing.T) {
	cfg := SourceConfig{Source: SourceFile, VerifyKeyFile: "testdata/does-not-exist.pem"}
	l, err := cfg.Loader(context.Background())
	rtx.Must(err, "failed to build loader")

	_, err = LoadWithRetry(context.Background(), l, NewBackOff())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadWithRetry() error = %v, want os.ErrNotExist", err)
	}
	if autherr.KindOf(err) != autherr.KeyUnavailable {
		t.Errorf("LoadWithRetry() kind = %s, want KeyUnavailable", autherr.KindOf(err))
	}
}

func TestLoadWithRetry_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLoader("fake", func(context.Context) ([][]byte, error) {
		return nil, errors.New("unavailable")
	})
	_, err := LoadWithRetry(ctx, l, NewBackOff())
	if autherr.KindOf(err) != autherr.KeyUnavailable {
		t.Errorf("LoadWithRetry() error = %v, want KeyUnavailable", err)
	}
}
