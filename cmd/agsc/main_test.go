package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/require"
)

const twiceSrc = `int Twice(int x)
{
	return x * 2;
}

int Four()
{
	return Twice(2);
}
`

// execute runs the command line in an empty working directory with an
// empty home directory.
func execute(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	homedir.DisableCache = true
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readModule(t *testing.T, path string) *bytecode.Module {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	mod, err := bytecode.Unmarshal(data)
	require.NoError(t, err)
	return mod
}

func TestCompileWritesModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game.asc"), twiceSrc)

	_, _, err := execute(t, dir, "compile", "game.asc", "--export-all")
	require.NoError(t, err)

	mod := readModule(t, filepath.Join(dir, "game.agsc"))
	var names []string
	for _, e := range mod.Exports {
		names = append(names, e.Name)
	}
	require.Equal(t, []string{"Twice$1", "Four$0"}, names)
}

func TestCompileJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game.asc"), twiceSrc)

	stdout, _, err := execute(t, dir, "compile", "--json", "game.asc")
	require.NoError(t, err)
	require.Contains(t, stdout, `"functions"`)
	require.Contains(t, stdout, `"Twice"`)
	_, err = os.Stat(filepath.Join(dir, "game.agsc"))
	require.True(t, os.IsNotExist(err))
}

func TestCompileError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.asc"), "int food;\nint F()\n{\n\treturn foo;\n}\n")

	_, stderr, err := execute(t, dir, "compile", "bad.asc")
	require.EqualError(t, err, "bad.asc: compilation failed")
	require.Contains(t, stderr, "Unexpected 'foo'")
	require.Contains(t, stderr, "--> bad.asc:4")
	require.Contains(t, stderr, "4 | return foo;")
	require.Contains(t, stderr, "food")
}

func TestCompileJoinsInputsWithOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.ash"), "import int Twice(int x);\n")
	writeFile(t, filepath.Join(dir, "b.asc"), "int Eight()\n{\n\treturn Twice(4);\n}\n")

	_, _, err := execute(t, dir, "compile", "-o", "out/all.agsc", "a.ash", "b.asc")
	require.NoError(t, err)

	mod := readModule(t, filepath.Join(dir, "out", "all.agsc"))
	require.Contains(t, mod.Imports, "Twice")
	var sections []string
	for _, s := range mod.Sections {
		sections = append(sections, s.Name)
	}
	require.Contains(t, sections, "b.asc")
}

func TestCompileProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "agsc.toml"), `
[project]
name = "demo"

[compile]
sources = ["scripts/*.asc"]
output = "build/demo.agsc"
export_all = true
`)
	writeFile(t, filepath.Join(dir, "scripts", "game.asc"), twiceSrc)

	_, _, err := execute(t, filepath.Join(dir, "scripts"), "compile")
	require.NoError(t, err)

	mod := readModule(t, filepath.Join(dir, "build", "demo.agsc"))
	require.Len(t, mod.Exports, 2)
}

func TestCompileFlagOverridesProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "agsc.toml"), "[compile]\nexport_all = true\n")
	writeFile(t, filepath.Join(dir, "game.asc"), twiceSrc)

	_, _, err := execute(t, dir, "compile", "--export-all=false", "game.asc")
	require.NoError(t, err)
	require.Empty(t, readModule(t, filepath.Join(dir, "game.agsc")).Exports)
}

func TestCompileWithoutInputs(t *testing.T) {
	_, _, err := execute(t, t.TempDir(), "compile")
	require.EqualError(t, err, "no input files and no agsc.toml found")
}

func TestDis(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game.asc"), twiceSrc)

	stdout, _, err := execute(t, dir, "dis", "game.asc")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stdout, "+"))
	require.Contains(t, stdout, "OPCODE")
	require.Contains(t, stdout, "Twice:")
	require.Contains(t, stdout, "Four:")
	require.Contains(t, stdout, "func Twice")

	stdout, _, err = execute(t, dir, "dis", "game.asc", "--func", "Twice")
	require.NoError(t, err)
	require.Contains(t, stdout, "Twice:")
	require.NotContains(t, stdout, "Four:")

	_, _, err = execute(t, dir, "dis", "game.asc", "--func", "Nope")
	require.EqualError(t, err, `function "Nope" not found`)
}

func TestDisCompiledModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game.asc"), twiceSrc)
	_, _, err := execute(t, dir, "compile", "game.asc")
	require.NoError(t, err)

	stdout, _, err := execute(t, dir, "dis", "game.agsc")
	require.NoError(t, err)
	require.Contains(t, stdout, "Four:")
}

func TestTokens(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game.asc"), "int x;\n\nint y = 3;\n")

	stdout, _, err := execute(t, dir, "tokens", "game.asc")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	// Three separators, the header and eight tokens.
	require.Len(t, lines, 12)
	require.Contains(t, lines[1], "INDEX")
	require.Contains(t, lines[3], "game.asc:1")
	require.Contains(t, lines[6], "game.asc:3")
	require.Contains(t, lines[8], "assignment")
	require.Contains(t, lines[9], "literal")
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game.asc"), twiceSrc)

	stdout, _, err := execute(t, dir, "run", "game.asc", "--func", "Twice", "--arg", "21")
	require.NoError(t, err)
	require.Equal(t, "42\n", stdout)

	stdout, _, err = execute(t, dir, "run", "game.asc", "-f", "Four")
	require.NoError(t, err)
	require.Equal(t, "4\n", stdout)
}

func TestRunStepLimit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "spin.asc"), "void Spin()\n{\n\twhile (1) { }\n}\n")

	_, _, err := execute(t, dir, "run", "spin.asc", "-f", "Spin", "--max-steps", "1000")
	require.Error(t, err)
	require.Contains(t, err.Error(), "step limit")
}

func TestSourceLine(t *testing.T) {
	src := "a\nb\n\"__NEWSCRIPTSTART_room1.asc\"\nc\r\n  d  \n"
	require.Equal(t, "b", sourceLine(src, "main.asc", "main.asc", 2))
	require.Equal(t, "d", sourceLine(src, "main.asc", "room1.asc", 2))
	require.Equal(t, "", sourceLine(src, "main.asc", "room1.asc", 3))
	require.Equal(t, "", sourceLine(src, "main.asc", "main.asc", 0))
}

func TestOutputPath(t *testing.T) {
	require.Equal(t, "dir/game.agsc", outputPath("dir/game.asc"))
	require.Equal(t, "game.agsc", outputPath("game"))
}
