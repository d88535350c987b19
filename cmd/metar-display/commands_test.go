package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"wrap", "METAR", "ZYTX 010000Z 00000KT 9999="})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "METAR ZYTX\n010000Z 00000KT\n9999=\n", out.String())
}

func TestWrapCommand_RejectsBadWidth(t *testing.T) {
	rootCmd.SetArgs([]string{"wrap", "--width", "0", "X"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		wrapWidth = 16
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--width")
}
