package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigReadsBack(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, writeDefaultConfig(fs, "/configs/cosmetic_filters.toml"))
	assert.Error(t, writeDefaultConfig(fs, "/configs/cosmetic_filters.toml"))

	data, err := afero.ReadFile(fs, "/configs/cosmetic_filters.toml")
	require.NoError(t, err)

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(data)))

	c, err := decodeConfig(v)
	require.NoError(t, err)
	want := defaultConfig()
	assert.Equal(t, want.HTTP, c.HTTP)
	assert.Equal(t, want.Output, c.Output)
	assert.Equal(t, want.Engine, c.Engine)
	assert.Equal(t, want.Server.Addr, c.Server.Addr)
	assert.Empty(t, c.Server.AllowedOrigins)
	assert.Equal(t, want.Lists, c.Lists)
}

func TestDecodeConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("server.allowed_origins", "https://a.example,https://b.example")
	v.Set("engine.head_timeout", "0s")

	c, err := decodeConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, c.HTTP.Timeout)
	assert.Equal(t, 4, c.HTTP.Concurrency)
	assert.Equal(t, time.Duration(0), c.Engine.HeadTimeout)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Server.AllowedOrigins)
}
