package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agsc-lang/agsc/compiler"
	"github.com/stretchr/testify/require"
)

const sample = `
[project]
name = "demo"

[compile]
sources = ["scripts/*.asc", "main.asc"]
output = "out/game.agsc"
export_all = true
line_numbers = false
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Equal(t, "demo", p.Meta.Name)
	require.Equal(t, []string{"scripts/*.asc", "main.asc"}, p.Compile.Sources)

	o := p.Options(compiler.DefaultOptions())
	require.True(t, o.ExportAll)
	require.False(t, o.LineNumbers)
	require.True(t, o.ShowWarnings, "unset options keep the base value")
	require.True(t, o.LeftToRight)
}

func TestParseDefaults(t *testing.T) {
	p, err := Parse([]byte("[project]\nname = \"x\"\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"*.asc"}, p.Compile.Sources)
	require.Equal(t, compiler.DefaultOptions(), p.Options(compiler.DefaultOptions()))
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[compile]\nexport_al = true\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "compile.export_al")
}

func TestParseRejectsBadToml(t *testing.T) {
	_, err := Parse([]byte("[compile\n"))
	require.Error(t, err)
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(sample), 0o644))
	nested := filepath.Join(root, "scripts", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	for _, name := range []string{"scripts/b.asc", "scripts/a.asc", "main.asc", "scripts/notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("int x;\n"), 0o644))
	}

	p, err := FindAndLoad(nested)
	require.NoError(t, err)
	require.NotNil(t, p)
	dir, err := filepath.Abs(root)
	require.NoError(t, err)
	require.Equal(t, dir, p.Dir)
	require.Equal(t, filepath.Join(dir, "out", "game.agsc"), p.OutputPath())

	paths, err := p.SourcePaths()
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "main.asc"),
		filepath.Join(dir, "scripts", "a.asc"),
		filepath.Join(dir, "scripts", "b.asc"),
	}, paths)
}

func TestFindAndLoadWithoutProject(t *testing.T) {
	p, err := FindAndLoad(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, p)
}
