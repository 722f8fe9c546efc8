package docker

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellej/hope-graph-updater/internal/model"
)

func TestDisplayStream_Build(t *testing.T) {
	stream := strings.Join([]string{
		`{"stream":"Step 1/2 : FROM continuumio/miniconda3\n"}`,
		`{"stream":"Step 2/2 : CMD [\"bash\", \"start-application.sh\"]\n"}`,
		`{"aux":{"ID":"sha256:0123456789abcdef"}}`,
		`{"stream":"Successfully built 0123456789ab\n"}`,
	}, "\n")

	var out bytes.Buffer
	res, err := displayStream(strings.NewReader(stream), &out)
	require.NoError(t, err)
	assert.Equal(t, "sha256:0123456789abcdef", res.ImageID)
	assert.Contains(t, out.String(), "Step 1/2")
	assert.Contains(t, out.String(), "Successfully built")
}

func TestDisplayStream_PushDigest(t *testing.T) {
	stream := `{"status":"latest: digest: sha256:feed size: 1234"}
{"progressDetail":{},"aux":{"Tag":"latest","Digest":"sha256:feed","Size":1234}}`

	res, err := displayStream(strings.NewReader(stream), nil)
	require.NoError(t, err)
	assert.Equal(t, "sha256:feed", res.Digest)
}

// TestDisplayStream_Error verifies that an error message in the stream
// fails the operation, like a failing RUN step does in `docker build`.
func TestDisplayStream_Error(t *testing.T) {
	stream := `{"stream":"Step 1/1 : RUN false\n"}
{"errorDetail":{"code":1,"message":"The command '/bin/sh -c false' returned a non-zero code: 1"},"error":"The command '/bin/sh -c false' returned a non-zero code: 1"}`

	_, err := displayStream(strings.NewReader(stream), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-zero code")
}

func TestPushErrorCode(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   model.ExitCode
	}{
		{
			"unauthorized",
			`{"errorDetail":{"message":"unauthorized: authentication required"},"error":"unauthorized: authentication required"}`,
			model.ExitRegistryAuthFailed,
		},
		{
			"access denied",
			`{"errorDetail":{"message":"denied: requested access to the resource is denied"},"error":"denied: requested access to the resource is denied"}`,
			model.ExitRegistryAuthFailed,
		},
		{
			"forbidden status",
			`{"errorDetail":{"code":403,"message":"forbidden"},"error":"forbidden"}`,
			model.ExitRegistryAuthFailed,
		},
		{
			"manifest invalid",
			`{"errorDetail":{"message":"manifest invalid: manifest invalid"},"error":"manifest invalid: manifest invalid"}`,
			model.ExitGeneralError,
		},
		{
			"network failure",
			`{"errorDetail":{"message":"Get \"https://registry-1.docker.io/v2/\": dial tcp: i/o timeout"},"error":"dial tcp: i/o timeout"}`,
			model.ExitGeneralError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := displayStream(strings.NewReader(tt.stream), nil)
			require.Error(t, err)
			assert.Equal(t, tt.want, pushErrorCode(err))
		})
	}
}
