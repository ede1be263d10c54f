package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalSecretManager_GetSecret(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "processors"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "processors", "plain"), []byte("KEY-PLAIN\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "processors", "json"), []byte(`{"value":"KEY-JSON","version":"3"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "processors", "empty"), []byte("  "), 0o600))

	m := NewLocalSecretManager(dir, zap.NewNop())
	ctx := context.Background()

	plain, err := m.GetSecret(ctx, "processors/plain")
	require.NoError(t, err)
	assert.Equal(t, "KEY-PLAIN", plain.Value)

	js, err := m.GetSecret(ctx, "processors/json")
	require.NoError(t, err)
	assert.Equal(t, "KEY-JSON", js.Value)
	assert.Equal(t, "3", js.Version)

	_, err = m.GetSecret(ctx, "processors/empty")
	assert.Error(t, err)

	_, err = m.GetSecret(ctx, "processors/missing")
	assert.ErrorContains(t, err, "secret not found")
}

func TestLocalSecretManager_StaysUnderBasePath(t *testing.T) {
	parent := t.TempDir()
	base := filepath.Join(parent, "secrets")
	require.NoError(t, os.MkdirAll(base, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "outside"), []byte("nope"), 0o600))

	_, err := NewLocalSecretManager(base, zap.NewNop()).GetSecret(context.Background(), "../outside")
	assert.Error(t, err)
}

func newVaultTestServer(t *testing.T, reads *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		switch r.URL.Path {
		case "/v1/secret/data/tsys-connector/processors/3":
			*reads++
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"data":     map[string]any{"value": "KEY-FROM-VAULT"},
					"metadata": map[string]any{"version": 4},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
		}
	}))
}

func TestVaultAdapter_GetSecret(t *testing.T) {
	reads := 0
	ts := newVaultTestServer(t, &reads)
	defer ts.Close()

	cfg := DefaultVaultConfig(ts.URL)
	cfg.Token = "test-token"

	adapter, err := NewVaultAdapter(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		secret, err := adapter.GetSecret(context.Background(), "tsys-connector/processors/3")
		require.NoError(t, err)
		assert.Equal(t, "KEY-FROM-VAULT", secret.Value)
		assert.Equal(t, "4", secret.Version)
	}
	assert.Equal(t, 2, reads, "secrets are read on every call")

	_, err = adapter.GetSecret(context.Background(), "tsys-connector/processors/404")
	assert.Error(t, err)
}

func TestVaultAdapter_AuthValidation(t *testing.T) {
	cfg := DefaultVaultConfig("https://vault.example.com:8200")
	_, err := NewVaultAdapter(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "token is required")

	cfg.AuthMethod = "kubernetes"
	_, err = NewVaultAdapter(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported auth method")
}

func TestKVPath(t *testing.T) {
	cfg := DefaultVaultConfig("https://vault.example.com:8200")
	assert.Equal(t, "secret/data/tsys/3", kvPath(cfg, "tsys/3"))

	cfg.KVVersion = "v1"
	cfg.MountPath = "kv"
	assert.Equal(t, "kv/tsys/3", kvPath(cfg, "tsys/3"))
}

func TestMerchantKeyFromData(t *testing.T) {
	v2 := DefaultVaultConfig("https://vault.example.com:8200")

	secret, err := merchantKeyFromData(v2, map[string]interface{}{
		"data":     map[string]interface{}{"value": "K"},
		"metadata": map[string]interface{}{"version": json.Number("7")},
	})
	require.NoError(t, err)
	assert.Equal(t, "K", secret.Value)
	assert.Equal(t, "7", secret.Version)

	_, err = merchantKeyFromData(v2, map[string]interface{}{"value": "flat"})
	assert.ErrorContains(t, err, "invalid secret format")

	v1 := DefaultVaultConfig("https://vault.example.com:8200")
	v1.KVVersion = "v1"
	v1.ValueKey = "merchant_key"
	secret, err = merchantKeyFromData(v1, map[string]interface{}{"merchant_key": "K1"})
	require.NoError(t, err)
	assert.Equal(t, "K1", secret.Value)
	assert.Equal(t, "1", secret.Version)

	_, err = merchantKeyFromData(v1, map[string]interface{}{"value": "wrong field"})
	assert.ErrorContains(t, err, `"merchant_key"`)
}

type fakeSecretValueGetter struct {
	out *secretsmanager.GetSecretValueOutput
	err error
	ids []string
}

func (f *fakeSecretValueGetter) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.ids = append(f.ids, aws.ToString(in.SecretId))
	return f.out, f.err
}

func TestAWSSecretsManagerAdapter_GetSecret(t *testing.T) {
	fake := &fakeSecretValueGetter{out: &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String("KEY-FROM-AWS"),
		VersionId:    aws.String("v-1"),
	}}
	adapter := &awsSecretsManagerAdapter{client: fake, logger: zap.NewNop()}

	secret, err := adapter.GetSecret(context.Background(), "tsys-connector/processors/3/merchant-key")
	require.NoError(t, err)
	assert.Equal(t, "KEY-FROM-AWS", secret.Value)
	assert.Equal(t, "v-1", secret.Version)
	assert.Equal(t, []string{"tsys-connector/processors/3/merchant-key"}, fake.ids)

	fake.out = &secretsmanager.GetSecretValueOutput{}
	_, err = adapter.GetSecret(context.Background(), "binary-only")
	assert.Error(t, err)

	fake.err = errors.New("AccessDeniedException")
	_, err = adapter.GetSecret(context.Background(), "denied")
	assert.ErrorContains(t, err, "AccessDeniedException")
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	none, err := New(ctx, BackendConfig{}, logger)
	require.NoError(t, err)
	assert.Nil(t, none)

	local, err := New(ctx, BackendConfig{Backend: BackendLocal, LocalPath: t.TempDir()}, logger)
	require.NoError(t, err)
	assert.NotNil(t, local)

	_, err = New(ctx, BackendConfig{Backend: BackendLocal}, logger)
	assert.Error(t, err)

	_, err = New(ctx, BackendConfig{Backend: BackendVault}, logger)
	assert.Error(t, err)

	_, err = New(ctx, BackendConfig{Backend: BackendAWS, AWS: &AWSSecretsManagerConfig{}}, logger)
	assert.Error(t, err)

	_, err = New(ctx, BackendConfig{Backend: "gcp"}, logger)
	assert.ErrorContains(t, err, "unknown secret backend")
}
