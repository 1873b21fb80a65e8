package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalHealthChecker(t *testing.T) {
	checker := signalHealthChecker{}

	t.Run("always returns nil", func(t *testing.T) {
		err := checker.CheckHealth(context.Background())
		assert.NoError(t, err)
	})
}

func TestMetricsHealthChecker(t *testing.T) {
	err := metricsHealthChecker{}.CheckHealth(context.Background())
	assert.NoError(t, err)
}

func TestIdentityHealthChecker(t *testing.T) {
	tests := []struct {
		name       string
		binaryName string
		envPrefix  string
		configName string
		wantErr    bool
		errContain string
	}{
		{
			name:       "all fields valid",
			binaryName: "nimbuscdn",
			envPrefix:  "NIMBUSCDN",
			configName: "nimbuscdn",
			wantErr:    false,
		},
		{
			name:       "missing binary name",
			binaryName: "",
			envPrefix:  "NIMBUSCDN",
			configName: "nimbuscdn",
			wantErr:    true,
			errContain: "missing binary name",
		},
		{
			name:       "missing env prefix",
			binaryName: "nimbuscdn",
			envPrefix:  "",
			configName: "nimbuscdn",
			wantErr:    true,
			errContain: "missing env prefix",
		},
		{
			name:       "missing config name",
			binaryName: "nimbuscdn",
			envPrefix:  "NIMBUSCDN",
			configName: "",
			wantErr:    true,
			errContain: "missing config name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := identityHealthChecker{
				binaryName: tt.binaryName,
				envPrefix:  tt.envPrefix,
				configName: tt.configName,
			}

			err := checker.CheckHealth(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContain)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
