package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func appSnapshot(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", "app.yaml"))
	require.NoError(t, err)
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rbisynth", cmd.Use)
	assert.Contains(t, cmd.Long, "RBI")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"dsl", "gems", "history", "version"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestDSLCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	dslCmd, _, err := cmd.Find([]string{"dsl"})
	require.NoError(t, err)

	outdir := dslCmd.Flags().Lookup("outdir")
	require.NotNil(t, outdir)
	assert.Equal(t, "o", outdir.Shorthand)
	assert.Equal(t, "sorbet/rbi/dsl", outdir.DefValue)

	verify := dslCmd.Flags().Lookup("verify")
	require.NotNil(t, verify)
	assert.Equal(t, "V", verify.Shorthand)

	gens := dslCmd.Flags().Lookup("generators")
	require.NotNil(t, gens)
	assert.Equal(t, "g", gens.Shorthand)
}

func TestGemsCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	gemsCmd, _, err := cmd.Find([]string{"gems"})
	require.NoError(t, err)

	outdir := gemsCmd.Flags().Lookup("outdir")
	require.NotNil(t, outdir)
	assert.Equal(t, "sorbet/rbi/gems", outdir.DefValue)

	for _, name := range []string{"exclude", "typed", "verify", "snapshot", "db"} {
		assert.NotNil(t, gemsCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rbisynth 0.1.0")
}
