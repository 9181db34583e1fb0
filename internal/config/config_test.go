package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/internal/config"
)

func TestValidateRequiresModel(t *testing.T) {
	cfg := config.Config{Model: "   "}

	err := cfg.Validate()
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "model", cfgErr.Field)
}

func TestValidateGeneratesThreadID(t *testing.T) {
	cfg := config.Config{Model: "llama3:latest"}

	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.ThreadID)
}

func TestValidateKeepsSuppliedThreadID(t *testing.T) {
	cfg := config.Config{Model: "llama3:latest", ThreadID: " user-session-1 "}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "user-session-1", cfg.ThreadID)
}

func TestValidateDefaults(t *testing.T) {
	cfg := config.Config{Model: "llama3:latest"}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, config.DefaultQuitWords, cfg.QuitWords)
	assert.Equal(t, 4, cfg.RAGTopK)
}

func TestValidateRejectsNegativeTemperature(t *testing.T) {
	cfg := config.Config{Model: "llama3:latest", Temperature: -0.1}

	err := cfg.Validate()
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "temperature", cfgErr.Field)
}

func TestValidateRejectsNegativeMaxTurns(t *testing.T) {
	cfg := config.Config{Model: "llama3:latest", MaxTurns: -1}
	require.Error(t, cfg.Validate())
}

func TestParseQuitWords(t *testing.T) {
	assert.Equal(t, []string{"bye", "done"}, config.ParseQuitWords("bye, done"))
	assert.Equal(t, []string{"quit"}, config.ParseQuitWords("quit,,"))
	assert.Nil(t, config.ParseQuitWords(""))
}
