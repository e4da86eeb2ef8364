package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/kmol-editor/kmol"
	"github.com/kmol-editor/kmol/pkg/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoEval struct{}

func (echoEval) Eval(_ context.Context, src string, stdout, _ io.Writer) error {
	if strings.HasPrefix(src, "fail") {
		return fmt.Errorf("failed on purpose")
	}
	_, err := io.WriteString(stdout, src)
	return err
}

func runShell(t *testing.T, input string, opts ...ShellOption) (*Shell, string, error) {
	t.Helper()
	ed := kmol.New(kmol.WithCodec(memory.NewCodec()), kmol.WithEvaluator(echoEval{}))
	var out bytes.Buffer
	sh := NewShell(ed, strings.NewReader(input), &out, opts...)
	err := sh.Run(context.Background())
	return sh, out.String(), err
}

func TestShell_EditingSession(t *testing.T) {
	input := strings.Join([]string{
		"new /mem/demo",
		"add 1 first node",
		"set 2",
		"hello",
		"world",
		".",
		"clone 2",
		"rename 3 copy",
		"tree",
		"find demo/c*",
		"run 2",
		"save",
		"quit",
	}, "\n")

	sh, out, err := runShell(t, input)
	require.NoError(t, err)
	assert.Equal(t, "/mem/demo.kmol", sh.Current())

	assert.Contains(t, out, ">>> Project 'demo' created at /mem/demo.kmol.")
	assert.Contains(t, out, "demo *\n  [2] first node ~\n  [3] copy ~\n")
	assert.Contains(t, out, "[3] demo/copy\n")
	assert.Contains(t, out, "hello\nworld\n")
	assert.Contains(t, out, ">>> Saved /mem/demo.kmol.")
	assert.NotContains(t, out, "error:")
}

func TestShell_QuitIsGatedOnUnsavedChanges(t *testing.T) {
	input := strings.Join([]string{
		"new /mem/a.kmol",
		"add 1",
		"quit",
		"projects",
		"quit!",
		"tree",
	}, "\n")

	_, out, err := runShell(t, input)
	require.NoError(t, err)
	assert.Contains(t, out, "error: unsaved changes in /mem/a.kmol")
	assert.Contains(t, out, "> /mem/a.kmol *\n")
	assert.NotContains(t, out, "[2] New node", "commands after quit! must not run")
}

func TestShell_EndOfInputWithUnsavedChanges(t *testing.T) {
	_, _, err := runShell(t, "new /mem/a.kmol\nadd 1 x\n")
	assert.ErrorIs(t, err, ErrUnsavedChanges)

	_, _, err = runShell(t, "new /mem/a.kmol\nadd 1 x\nsave\n")
	assert.NoError(t, err)
}

func TestShell_Errors(t *testing.T) {
	input := strings.Join([]string{
		"tree",
		"bogus",
		"new /mem/a.kmol",
		"rm 1",
		"cat 9",
		"add x",
		"rename 1",
		"close",
		"find [",
	}, "\n")

	_, out, err := runShell(t, input)
	require.NoError(t, err)
	assert.Contains(t, out, "error: invalid operation: no project selected")
	assert.Contains(t, out, `unknown command "bogus"`)
	assert.Contains(t, out, "error: not found")
	assert.Equal(t, 6, strings.Count(out, "error:"), out)
}

func TestShell_CloseSelectsNextProject(t *testing.T) {
	input := strings.Join([]string{
		"new /mem/a.kmol",
		"new /mem/b.kmol",
		"add 1",
		"close",
		"close!",
		"projects",
	}, "\n")

	sh, out, err := runShell(t, input)
	require.NoError(t, err)
	assert.Contains(t, out, "save first or use 'close!'")
	assert.Contains(t, out, ">>> Closed /mem/b.kmol.")
	assert.Equal(t, "/mem/a.kmol", sh.Current())
}

func TestShell_ScriptFailureIsOutput(t *testing.T) {
	_, out, err := runShell(t, "new /mem/a.kmol\nset 1 fail now\nrun 1\nquit!\n")
	require.NoError(t, err)
	assert.Contains(t, out, "script error: failed on purpose")
	assert.NotContains(t, out, "error: script")
}

func TestShell_BannerAndGraph(t *testing.T) {
	_, out, err := runShell(t, "new /mem/a\ngraph\nhelp\n", WithBanner("9.9.9"), WithPrompt("kmol> "))
	require.NoError(t, err)
	assert.Contains(t, out, "kmol 9.9.9")
	assert.Contains(t, out, "kmol> ")
	assert.Contains(t, out, "graph TD\n")
	assert.Contains(t, out, "n1((\"a\"))")
	assert.Contains(t, out, "set <id> [content]")
}

func TestEnsureExt(t *testing.T) {
	assert.Equal(t, "a.kmol", EnsureExt("a"))
	assert.Equal(t, "dir/a.json", EnsureExt("dir/a.json"))
}
