package jenkins

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameHash64(t *testing.T) {
	// Worked example over a real CASC file path.
	got := NameHash64("interface/cinematics/logo_1024.avi")
	require.Equal(t, uint64(9993239704054654754), got)
}

func TestNormalizePath(t *testing.T) {
	require.Equal(t, `INTERFACE\ICONS\FOO.BLP`, NormalizePath("interface/icons/foo.blp"))
	require.Equal(t, `A\B`, NormalizePath(`a\b`))
}

func TestHashLittle2Empty(t *testing.T) {
	pc, pb := HashLittle2(nil, 0, 0)
	require.NotPanics(t, func() { _ = pc; _ = pb })
}
