package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out   *ssm.GetParameterOutput
	err   error
	input *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.input = in
	return f.out, f.err
}

func strPtr(s string) *string { return &s }

func TestResolveDecryptsParameter(t *testing.T) {
	api := &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name:  strPtr("/nlsql/openai"),
		Value: strPtr("sk-secret\n"),
		Type:  types.ParameterTypeSecureString,
	}}}
	client, err := New(api)
	require.NoError(t, err)

	value, err := client.Resolve(context.Background(), " /nlsql/openai ")
	require.NoError(t, err)
	require.Equal(t, "sk-secret", value)
	require.Equal(t, "/nlsql/openai", *api.input.Name)
	require.True(t, *api.input.WithDecryption)
}

func TestResolveMissingValue(t *testing.T) {
	for _, out := range []*ssm.GetParameterOutput{
		nil,
		{},
		{Parameter: &types.Parameter{Name: strPtr("p")}},
		{Parameter: &types.Parameter{Name: strPtr("p"), Value: strPtr("  ")}},
	} {
		client, err := New(&fakeSSM{out: out})
		require.NoError(t, err)
		_, err = client.Resolve(context.Background(), "p")
		require.ErrorContains(t, err, "has no value")
	}
}

func TestResolveAPIError(t *testing.T) {
	client, err := New(&fakeSSM{err: errors.New("access denied")})
	require.NoError(t, err)
	_, err = client.Resolve(context.Background(), "p")
	require.ErrorContains(t, err, "access denied")
}

func TestResolveValidation(t *testing.T) {
	_, err := (&Client{}).Resolve(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")

	client, err := New(&fakeSSM{})
	require.NoError(t, err)
	_, err = client.Resolve(context.Background(), "   ")
	require.ErrorContains(t, err, "required")

	_, err = New(nil)
	require.ErrorContains(t, err, "must not be nil")
}
