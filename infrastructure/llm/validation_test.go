package llm

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{name: "empty keeps provider default", in: "", want: ""},
		{name: "https", in: "https://proxy.internal/v1", want: "https://proxy.internal/v1"},
		{name: "http with port", in: "http://localhost:8080", want: "http://localhost:8080"},
		{name: "no scheme", in: "proxy.internal/v1", wantErr: "has no scheme"},
		{name: "wrong scheme", in: "ftp://proxy.internal", wantErr: `scheme "ftp"`},
		{name: "no host", in: "https://", wantErr: "has no host"},
		{name: "unparseable", in: "http://[::1", wantErr: "invalid base URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateBaseURL(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidBaseURL)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTimeout(t *testing.T) {
	assert.Zero(t, ValidateTimeout(0))
	assert.Zero(t, ValidateTimeout(-time.Second))
	assert.Equal(t, MinTimeout, ValidateTimeout(time.Millisecond))
	assert.Equal(t, 90*time.Second, ValidateTimeout(90*time.Second))
	assert.Equal(t, MaxTimeout, ValidateTimeout(time.Hour))
}

func TestExtractOptionalFloat64_RejectsNaN(t *testing.T) {
	opts := map[string]any{"temperature": math.NaN()}
	assert.Equal(t, 0.7, ExtractOptionalFloat64(opts, "temperature", 0.7, nil))
}

func TestSafeInt_Float32(t *testing.T) {
	v, ok := SafeInt(float32(3))
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = SafeInt(float32(math.NaN()))
	assert.False(t, ok)
}

func TestReportedOrEstimated(t *testing.T) {
	assert.Equal(t, 17, reportedOrEstimated(17, "ignored"))
	assert.Equal(t, 2, reportedOrEstimated(0, "12345678"))
	assert.Equal(t, 0, reportedOrEstimated(0, ""))
}
