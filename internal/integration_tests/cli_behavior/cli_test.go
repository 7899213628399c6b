package integration_tests

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/gobblego/internal/app"
	"github.com/specialistvlad/gobblego/internal/cli"
	"github.com/specialistvlad/gobblego/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test for: help lists every task.
func TestCLI_DisplaysHelp(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := cli.Parse([]string{"--help"}, &out)

	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	for _, cmd := range []string{"build", "watch", "graph"} {
		assert.Contains(t, out.String(), cmd)
	}
	assert.Contains(t, out.String(), "--log-level")
}

// Test for: parsed flags drive a full build.
func TestCLI_FlagsReachTheBuild(t *testing.T) {
	t.Setenv(app.EnvName, "")
	t.Setenv(app.EnvTmpDir, "")

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"site/gobble.yaml": `
nodes:
  - source: src
    path: ../src
  - transform: fill
    input: src
    plugin: replace
    options:
      who: ${who}
      where: ${env}
output: fill
`,
		"src/hello.txt": "hi {{ who }} in {{ where }}",
	})

	cfg, exit, err := cli.Parse([]string{
		"build", "site",
		"--cwd", dir,
		"--dest", "public",
		"--env", "staging",
		"--var", "who=there",
		"--log-format", "json",
	}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)

	logs := &testutil.SafeBuffer{}
	require.NoError(t, app.NewApp(logs, cfg, app.DefaultLoaders()).Run(context.Background()))

	testutil.AssertOutput(t, filepath.Join(dir, "public"), map[string]string{"hello.txt": "hi there in staging"})
	assert.Contains(t, logs.String(), `"msg":`)
}
