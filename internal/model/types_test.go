package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseVariant verifies string-to-variant conversion, including the
// empty-string default and case normalization.
func TestParseVariant(t *testing.T) {
	tests := []struct {
		input    string
		expected Variant
		hasError bool
	}{
		{"prod", VariantProd, false},
		{"dev", VariantDev, false},
		{"DEV", VariantDev, false},
		{"", VariantProd, false}, // plain build defaults to prod
		{"staging", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseVariant(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestVariant_IsValid(t *testing.T) {
	assert.True(t, VariantProd.IsValid())
	assert.True(t, VariantDev.IsValid())
	assert.False(t, Variant("latest").IsValid())
	assert.False(t, Variant("").IsValid())
}

// TestValidateTag checks Docker's tag grammar.
func TestValidateTag(t *testing.T) {
	valid := []string{"latest", "dev", "v1.2.3", "2020-10-10", "_x", "a"}
	for _, tag := range valid {
		assert.NoError(t, ValidateTag(tag), "tag %q should be valid", tag)
	}

	invalid := []string{"", ".hidden", "-dash", "has space", "has/slash", "x:y"}
	for _, tag := range invalid {
		assert.Error(t, ValidateTag(tag), "tag %q should be invalid", tag)
	}

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, ValidateTag(string(long)), "129-character tag should be invalid")
}

func TestImageRef_String(t *testing.T) {
	assert.Equal(t, "hellej/hope-graph-updater:dev",
		NewImageRef(DefaultRepository, "dev").String())
	assert.Equal(t, "hellej/hope-graph-updater:latest",
		NewImageRef(DefaultRepository, "").String(), "empty tag formats as latest")
}

// TestParseImageRef covers registry hosts with ports, missing tags and
// malformed references.
func TestParseImageRef(t *testing.T) {
	tests := []struct {
		input    string
		expected ImageRef
		hasError bool
	}{
		{"hellej/hope-graph-updater:dev", ImageRef{"hellej/hope-graph-updater", "dev"}, false},
		{"hellej/hope-graph-updater", ImageRef{"hellej/hope-graph-updater", "latest"}, false},
		{"localhost:5000/updater", ImageRef{"localhost:5000/updater", "latest"}, false},
		{"localhost:5000/updater:v2", ImageRef{"localhost:5000/updater", "v2"}, false},
		{"", ImageRef{}, true},
		{":dev", ImageRef{}, true},
		{"repo:.bad", ImageRef{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref, err := ParseImageRef(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ref)
		})
	}
}

// TestCLIError checks message formatting and unwrapping.
func TestCLIError(t *testing.T) {
	plain := NewCLIError(ExitConfigInvalid, "bad config")
	assert.Equal(t, "bad config", plain.Error())
	assert.Nil(t, plain.Unwrap())

	inner := errors.New("connection refused")
	wrapped := WrapCLIError(ExitDockerNotRunning, "docker unavailable", inner)
	assert.Equal(t, "docker unavailable: connection refused", wrapped.Error())
	assert.True(t, errors.Is(wrapped, inner))

	var target *CLIError
	require.True(t, errors.As(error(wrapped), &target))
	assert.Equal(t, ExitDockerNotRunning, target.Code)
}
