package integration_tests

import (
	"fmt"
	"testing"
	"time"

	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test for: the last merge input wins on conflicting paths.
func TestDagConcurrency_MergePrefersLaterInputs(t *testing.T) {
	// --- Arrange ---
	files := map[string]string{
		"gobble.hcl": `
source "base" {
  path = "base"
}

source "theme" {
  path = "theme"
}

merge "site" {
  inputs = ["base", "theme"]
}

output {
  node = "site"
}
`,
		"base/index.html":  "<p>base</p>",
		"base/about.html":  "<p>about</p>",
		"theme/index.html": "<p>theme</p>",
		"theme/style.css":  "body{}",
	}

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, testutil.Options{})

	// --- Assert ---
	require.NoError(t, result.Err)
	testutil.AssertOutput(t, result.Dest, map[string]string{
		"index.html": "<p>theme</p>",
		"about.html": "<p>about</p>",
		"style.css":  "body{}",
	})
}

// Test for: fan-in over parallel branches still runs one plugin call at a time.
func TestDagConcurrency_FanInSerializesPluginCalls(t *testing.T) {
	// --- Arrange ---
	completions := make(chan string, 16)
	sleeper := testutil.NewMockSleeperModule(completions, 20*time.Millisecond)

	files := map[string]string{}
	hcl := ""
	for _, branch := range []string{"a", "b", "c"} {
		for i := range 2 {
			files[fmt.Sprintf("%s/%s%d.txt", branch, branch, i)] = branch
		}
		hcl += fmt.Sprintf(`
source "%[1]s" {
  path = "%[1]s"
}

transform "%[1]s_slow" {
  input  = "%[1]s"
  plugin = "sleeper"
}
`, branch)
	}
	hcl += `
merge "all" {
  inputs = ["a_slow", "b_slow", "c_slow"]
}

output {
  node = "all"
}
`
	files["gobble.hcl"] = hcl

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, testutil.Options{Modules: []registry.Module{sleeper}})

	// --- Assert ---
	require.NoError(t, result.Err)
	assert.Len(t, completions, 6)
	assert.Equal(t, 1, sleeper.MaxConcurrent(), "the execution gate must never run two calls at once")

	records := sleeper.Records()
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].Start.Before(records[i-1].End), "call %d started before call %d ended", i, i-1)
	}

	testutil.AssertOutput(t, result.Dest, map[string]string{
		"a0.txt": "a", "a1.txt": "a",
		"b0.txt": "b", "b1.txt": "b",
		"c0.txt": "c", "c1.txt": "c",
	})
}

// Test for: a merge chained into another merge equals one flat merge.
func TestDagConcurrency_NestedMergesAreAssociative(t *testing.T) {
	sources := map[string]string{
		"a/x.txt": "a", "a/only-a.txt": "a",
		"b/x.txt": "b", "b/y.txt": "b",
		"c/y.txt": "c",
	}
	nodes := `
source "a" {
  path = "a"
}
source "b" {
  path = "b"
}
source "c" {
  path = "c"
}
`
	nested := map[string]string{"gobble.hcl": nodes + `
merge "ab" {
  inputs = ["a", "b"]
}
merge "abc" {
  inputs = ["ab", "c"]
}
output {
  node = "abc"
}
`}
	flat := map[string]string{"gobble.hcl": nodes + `
merge "abc" {
  inputs = ["a", "b", "c"]
}
output {
  node = "abc"
}
`}
	for name, content := range sources {
		nested[name] = content
		flat[name] = content
	}

	nestedResult := testutil.RunIntegrationTest(t, nested, testutil.Options{})
	flatResult := testutil.RunIntegrationTest(t, flat, testutil.Options{})
	require.NoError(t, nestedResult.Err)
	require.NoError(t, flatResult.Err)

	want := map[string]string{"x.txt": "b", "y.txt": "c", "only-a.txt": "a"}
	testutil.AssertOutput(t, nestedResult.Dest, want)
	testutil.AssertOutput(t, flatResult.Dest, want)
}
