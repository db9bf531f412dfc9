package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersCoreSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Subset(t, names, []string{"transcribe", "serve", "setup", "languages", "version"})

	flags := cmd.PersistentFlags()
	require.NotNil(t, flags.Lookup("model"))
	require.NotNil(t, flags.Lookup("model-dir"))
	require.NotNil(t, flags.Lookup("no-progress"))
	require.Equal(t, "base", flags.Lookup("model").DefValue)
	require.Equal(t, "true", flags.Lookup("auto-download").DefValue)
}

func TestTranscribeFlags(t *testing.T) {
	t.Parallel()

	cmd, _, err := NewRootCmd().Find([]string{"transcribe"})
	require.NoError(t, err)

	flags := cmd.Flags()
	require.Equal(t, "auto", flags.Lookup("language").DefValue)
	require.Equal(t, "false", flags.Lookup("silence-gate").DefValue)
	require.Equal(t, "-45", flags.Lookup("silence-threshold-dbfs").DefValue)
	require.NotNil(t, flags.Lookup("work-dir"))
	require.NotNil(t, flags.ShorthandLookup("o"))
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "transcribe")
	require.Contains(t, out.String(), "serve")
	require.Contains(t, out.String(), "setup")
	require.NotContains(t, out.String(), "record")
}

func TestSubcommandHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "transcribe", args: []string{"transcribe", "--help"}, contains: "Transcribe an audio file"},
		{name: "serve", args: []string{"serve", "--help"}, contains: "--max-upload-bytes"},
		{name: "setup", args: []string{"setup", "--help"}, contains: "Download and verify speech model assets"},
		{name: "languages", args: []string{"languages", "--help"}, contains: "--language"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stdout, _, err := runCommand(t, tt.args)
			require.NoError(t, err)
			require.Contains(t, stdout, tt.contains)
		})
	}
}
