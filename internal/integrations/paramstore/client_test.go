package paramstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	values  map[string]string
	err     error
	batches [][]string
}

func (f *fakeAPI) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.batches = append(f.batches, in.Names)
	if f.err != nil {
		return nil, f.err
	}
	out := &ssm.GetParametersOutput{}
	for _, n := range in.Names {
		v, ok := f.values[n]
		if !ok {
			out.InvalidParameters = append(out.InvalidParameters, n)
			continue
		}
		out.Parameters = append(out.Parameters, types.Parameter{Name: strPtr(n), Value: strPtr(v)})
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func TestResolve_HappyPath(t *testing.T) {
	api := &fakeAPI{values: map[string]string{
		"/bridge/twilio-auth-token":    "tok",
		"/bridge/supabase-service-key": `{"token":"svc"}`,
	}}
	client, err := New(api)
	require.NoError(t, err)

	got, err := client.Resolve(context.Background(), "/bridge/", []string{"twilio-auth-token", "supabase-service-key", "minio-secret-key"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"twilio-auth-token":    "tok",
		"supabase-service-key": "svc",
	}, got)
}

func TestResolve_Batches(t *testing.T) {
	api := &fakeAPI{values: map[string]string{}}
	client, err := New(api)
	require.NoError(t, err)

	keys := make([]string, 0, 12)
	for i := range 12 {
		keys = append(keys, fmt.Sprintf("k%d", i))
	}
	_, err = client.Resolve(context.Background(), "/p", keys)
	require.NoError(t, err)
	require.Len(t, api.batches, 2)
	require.Len(t, api.batches[0], 10)
	require.Len(t, api.batches[1], 2)
}

func TestResolve_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{err: errors.New("boom")})
	require.NoError(t, err)
	_, err = client.Resolve(context.Background(), "/p", []string{"k"})
	require.ErrorContains(t, err, "boom")
}

func TestResolve_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).Resolve(context.Background(), "/p", []string{"k"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestResolve_EmptyPrefix(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.Resolve(context.Background(), " / ", []string{"k"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestUnwrapToken(t *testing.T) {
	require.Equal(t, "raw", unwrapToken(" raw "))
	require.Equal(t, "sk", unwrapToken(`{"token":"sk"}`))
	require.Equal(t, `{"other":"v"}`, unwrapToken(`{"other":"v"}`))
	require.Equal(t, `{"broken`, unwrapToken(`{"broken`))
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}
