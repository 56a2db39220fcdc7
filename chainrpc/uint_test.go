package chainrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainUintParse(t *testing.T) {
	var u chainUint

	require.NoError(t, u.parse("42"))
	assert.Equal(t, chainUint(42), u)

	require.NoError(t, u.parse("18446744073709551615"))
	assert.Equal(t, chainUint(1<<64-1), u)

	// Fields older nodes omit arrive as empty strings.
	require.NoError(t, u.parse(""))
	assert.Equal(t, chainUint(0), u)

	assert.Error(t, u.parse("-1"))
	assert.Error(t, u.parse("0x10"))
	assert.Error(t, u.parse("18446744073709551616"))
}
