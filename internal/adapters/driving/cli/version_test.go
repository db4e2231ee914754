package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCmd_Use(t *testing.T) {
	cmd := newVersionCommand()
	assert.Equal(t, "version", cmd.Use)
	assert.Equal(t, "Print the version number", cmd.Short)
}

func TestVersionCmd_Executes(t *testing.T) {
	// Save and restore version
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	buf := new(bytes.Buffer)
	root := newRootCommand(&app{})
	root.SetOut(buf)
	root.SetArgs([]string{"version"})

	err := root.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "boltindex version test-version-1.0.0")
}

func TestVersionCmd_DisplaysDevByDefault(t *testing.T) {
	buf := new(bytes.Buffer)
	root := newRootCommand(&app{})
	root.SetOut(buf)
	root.SetArgs([]string{"version"})

	err := root.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "boltindex version dev")
}
