package dmx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlagsStringNone(t *testing.T) {
	require.Equal(t, "NONE", Flags(0).String())
}

func TestFlagsStringCombination(t *testing.T) {
	f := FlagEnabled | FlagIdle
	require.Equal(t, "ENABLED|IDLE", f.String())
}

func TestFlagsHas(t *testing.T) {
	f := FlagEnabled | FlagSending
	require.True(t, f.has(FlagEnabled))
	require.True(t, f.has(FlagSending))
	require.False(t, f.has(FlagIdle))
}
