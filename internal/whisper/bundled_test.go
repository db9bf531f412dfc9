package whisper

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fmueller/moji/internal/platform"
	"github.com/stretchr/testify/require"
)

// writeEngineStub installs a fake whisper-cli that records its arguments and
// writes body to the -of path with a .txt suffix.
func writeEngineStub(t *testing.T, body string, exitCode int, stderr string) (exe, argsFile string) {
	t.Helper()

	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args.txt")
	exe = filepath.Join(dir, "whisper-cli")
	stub := "#!/bin/sh\n" +
		"printf '%s\\n' \"$*\" > '" + argsFile + "'\n" +
		"out=''\n" +
		"while [ $# -gt 0 ]; do\n" +
		"  if [ \"$1\" = \"-of\" ]; then out=\"$2\"; fi\n" +
		"  shift\n" +
		"done\n"
	if stderr != "" {
		stub += ">&2 echo '" + stderr + "'\n"
	}
	if exitCode != 0 {
		stub += "exit " + strconv.Itoa(exitCode) + "\n"
	}
	stub += "printf '%s\\n' '" + body + "' > \"$out.txt\"\n"
	require.NoError(t, os.WriteFile(exe, []byte(stub), 0o755))
	return exe, argsFile
}

func TestResolveEnginePathFindsLibexecSibling(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	engineDir := filepath.Join(root, "libexec", "whisper")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.MkdirAll(engineDir, 0o755))

	moji := filepath.Join(binDir, "moji")
	require.NoError(t, os.WriteFile(moji, []byte(""), 0o755))

	enginePath := filepath.Join(engineDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveEnginePath(moji)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestResolveEnginePathFindsPackagingPathForLocalDev(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	moji := filepath.Join(root, "moji")
	require.NoError(t, os.WriteFile(moji, []byte(""), 0o755))

	host := platform.CurrentRuntime()
	targetDir := filepath.Join(root, "packaging", "whisper", host.OS+"_"+host.Arch)
	require.NoError(t, os.MkdirAll(targetDir, 0o755))
	enginePath := filepath.Join(targetDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveEnginePath(moji)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestResolveEnginePathMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	moji := filepath.Join(t.TempDir(), "bin", "moji")
	require.NoError(t, os.MkdirAll(filepath.Dir(moji), 0o755))
	require.NoError(t, os.WriteFile(moji, []byte(""), 0o755))

	_, err := ResolveEnginePath(moji)
	require.ErrorIs(t, err, ErrEngineNotFound)
}

func TestResolveEnginePathFallsBackToPath(t *testing.T) {
	exe, _ := writeEngineStub(t, "hello", 0, "")
	t.Setenv("PATH", filepath.Dir(exe))

	resolved, err := ResolveEnginePath(filepath.Join(t.TempDir(), "moji"))
	require.NoError(t, err)
	require.Equal(t, exe, resolved)
}

func TestNewBundledEngineRejectsNonExecutableOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whisper-cli")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	t.Setenv("MOJI_WHISPER_PATH", path)

	_, err := NewBundledEngine(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "MOJI_WHISPER_PATH is not executable")
}

func TestArgsLanguage(t *testing.T) {
	t.Parallel()

	auto := Args(TranscriptionRequest{AudioPath: "a.wav", ModelPath: "m.bin"}, "/tmp/out")
	require.Equal(t, []string{"-m", "m.bin", "-f", "a.wav", "-nt", "-otxt", "-of", "/tmp/out", "-l", "auto"}, auto)

	ja := Args(TranscriptionRequest{AudioPath: "a.wav", ModelPath: "m.bin", Language: "ja"}, "/tmp/out")
	require.Equal(t, "ja", ja[len(ja)-1])
}

func TestBundledEngineTranscribeReadsTextOutput(t *testing.T) {
	t.Parallel()

	exe, argsFile := writeEngineStub(t, "  hello from whisper  ", 0, "")
	engine := &BundledEngine{Executable: exe}

	text, err := engine.Transcribe(context.Background(), TranscriptionRequest{
		AudioPath: "/tmp/in.wav",
		ModelPath: "/tmp/ggml-base.bin",
		Language:  "en",
	})
	require.NoError(t, err)
	require.Equal(t, "hello from whisper", text)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(strings.TrimSpace(string(args)), "-l en"))
}

func TestBundledEngineTranscribeFailureCarriesStderr(t *testing.T) {
	t.Parallel()

	exe, _ := writeEngineStub(t, "", 3, "failed to read audio")
	engine := &BundledEngine{Executable: exe}

	_, err := engine.Transcribe(context.Background(), TranscriptionRequest{AudioPath: "a.wav", ModelPath: "m.bin"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "whisper transcribe failed")
	require.Contains(t, err.Error(), "failed to read audio")
}

func TestBundledEngineTranscribeRequiresPaths(t *testing.T) {
	t.Parallel()

	engine := &BundledEngine{Executable: "/bin/true"}
	_, err := engine.Transcribe(context.Background(), TranscriptionRequest{ModelPath: "m.bin"})
	require.ErrorContains(t, err, "audio path is required")

	_, err = engine.Transcribe(context.Background(), TranscriptionRequest{AudioPath: "a.wav"})
	require.ErrorContains(t, err, "model path is required")
}

func TestIsMissingSharedLibraryError(t *testing.T) {
	t.Parallel()

	require.True(t, isMissingSharedLibraryError("error while loading shared libraries: libwhisper.so.1: cannot open shared object file"))
	require.True(t, isMissingSharedLibraryError("dyld: Library not loaded: @rpath/libwhisper.dylib"))
	require.False(t, isMissingSharedLibraryError("some other runtime error"))
}

func TestIsIllegalInstructionError(t *testing.T) {
	t.Parallel()

	require.True(t, isIllegalInstructionError("signal: illegal instruction (core dumped)"))
	require.False(t, isIllegalInstructionError("some other runtime error"))
	require.False(t, isIllegalInstructionError(""))
}
