package errz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	require.Equal(t, "lexical error", Lexical.String())
	require.Equal(t, "syntax error", Syntax.String())
	require.Equal(t, "semantic error", Semantic.String())
	require.Equal(t, "internal error", Internal.String())
	require.Equal(t, "error", Kind(99).String())
}

func TestIsUserFacing(t *testing.T) {
	require.True(t, Semantic.IsUserFacing())
	require.False(t, Internal.IsUserFacing())
}
