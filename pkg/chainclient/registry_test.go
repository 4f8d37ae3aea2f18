package chainclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetUnregisteredChain(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("EVM-97")
	require.Error(t, err)

	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "EVM-97", configErr.MissingChain)
}

func TestRegistry_CloseIsIdempotentOnEmptyRegistry(t *testing.T) {
	r := NewRegistry()
	r.Close()
	r.Close()
	_, err := r.Get("EVM-97")
	assert.Error(t, err)
}
