package secrets

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvProvider(t *testing.T) {
	env := map[string]string{
		"RELEASEGRID_SECRET_PYPI_API_TOKEN": "prefixed",
		"PYPI_API_TOKEN":                    "bare",
		"ONLY_BARE":                         "bare-only",
		"EMPTY":                             "",
	}
	p := &EnvProvider{lookup: func(k string) (string, bool) { v, ok := env[k]; return v, ok }}
	ctx := context.Background()

	v, err := p.Resolve(ctx, "PYPI_API_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", v)

	v, err = p.Resolve(ctx, "ONLY_BARE")
	require.NoError(t, err)
	assert.Equal(t, "bare-only", v)

	_, err = p.Resolve(ctx, "MISSING")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = p.Resolve(ctx, "EMPTY")
	require.ErrorIs(t, err, ErrEmpty)
}

func TestResolveAll(t *testing.T) {
	p := NewMapProvider(map[string]string{"A": "1", "B": "2"})

	got, err := ResolveAll(context.Background(), p, []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1"}, got)

	_, err = ResolveAll(context.Background(), p, []string{"A", "C"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIsSecretEnv(t *testing.T) {
	declared := []string{"PYPI_API_TOKEN"}
	assert.True(t, IsSecretEnv("PYPI_API_TOKEN", declared))
	assert.True(t, IsSecretEnv("RELEASEGRID_SECRET_OTHER", declared))
	assert.False(t, IsSecretEnv("PATH", declared))
}

type fakeSecretsManager struct {
	values map[string]*secretsmanager.GetSecretValueOutput
	err    error
}

func (f *fakeSecretsManager) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out, ok := f.values[aws.ToString(in.SecretId)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return out, nil
}

func TestAWSProvider(t *testing.T) {
	client := &fakeSecretsManager{values: map[string]*secretsmanager.GetSecretValueOutput{
		"ci/PYPI_API_TOKEN": {SecretString: aws.String("pypi-abc")},
		"ci/BINARY":         {SecretBinary: []byte("bin")},
		"ci/BLANK":          {},
	}}
	p := NewAWSProvider(client, "ci/")
	ctx := context.Background()

	v, err := p.Resolve(ctx, "PYPI_API_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "pypi-abc", v)

	v, err = p.Resolve(ctx, "BINARY")
	require.NoError(t, err)
	assert.Equal(t, "bin", v)

	_, err = p.Resolve(ctx, "BLANK")
	require.ErrorIs(t, err, ErrEmpty)

	_, err = p.Resolve(ctx, "MISSING")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAWSProvider_APIError(t *testing.T) {
	client := &fakeSecretsManager{err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}}
	_, err := NewAWSProvider(client, "").Resolve(context.Background(), "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDeniedException")
}

func TestOpen(t *testing.T) {
	p, err := Open(context.Background(), "env")
	require.NoError(t, err)
	assert.Equal(t, "env", p.Name())

	_, err = Open(context.Background(), "vault")
	require.Error(t, err)
}
