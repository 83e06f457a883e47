package redis_db

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		wantErr  bool
	}{
		{
			name: "docker style",
			url:  "redis:6379",
			addr: "redis:6379",
		},
		{
			name:     "url with password",
			url:      "redis://:password123@localhost:6379",
			addr:     "localhost:6379",
			password: "password123",
		},
		{
			name:    "garbage",
			url:     "redis://a:b:c@@",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRedisURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, got.Addr)
			assert.Equal(t, tt.password, got.Password)
		})
	}
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedisClient(mr.Addr())
	require.NoError(t, err)
	assert.NotNil(t, client.Client())
	assert.NotNil(t, client.MakeRedisClient())
}

func TestNewRedisClient_EmptyAddress(t *testing.T) {
	_, err := NewRedisClient("")
	assert.Error(t, err)
}
