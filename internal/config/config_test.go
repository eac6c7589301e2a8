package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ReadPolicySurface, cfg.ReadPolicy())
	assert.Equal(t, ExpiryDisconnect, cfg.ExpiryPolicy())
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
}

func TestValidateRejectsUnknownPolicies(t *testing.T) {
	cfg := Default()
	cfg.ReadFailurePolicy = "ignore"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.TokenExpiryPolicy = "forever"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ReconnectDelay = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.APIBaseURL = "  "
	assert.Error(t, cfg.Validate())
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		push string
		want string
	}{
		{name: "http", base: "http://localhost:8080", want: "ws://localhost:8080/ws/websocket"},
		{name: "https with path", base: "https://pos.example.com/api/", want: "wss://pos.example.com/api/ws/websocket"},
		{name: "override", base: "http://localhost:8080", push: "ws://push:9000/stomp", want: "ws://push:9000/stomp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.APIBaseURL = tt.base
			cfg.PushURL = tt.push
			got, err := cfg.WebSocketURL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
