package include

import (
	"context"
	"testing"

	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/modules/internal/testtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInclude(t *testing.T) {
	var logs []string
	d := testtree.Dir(t, map[string]string{
		"index.html":    "<html>",
		"js/app.js":     "app",
		"js/app.js.map": "{}",
		"notes.md":      "notes",
	}, registry.Options{"patterns": []any{"*.js", "*.html"}}, &logs)

	require.NoError(t, Include(context.Background(), d))
	assert.Equal(t, map[string]string{"index.html": "<html>", "js/app.js": "app"}, testtree.Read(t, d.OutputDir))
	assert.Equal(t, []string{"included 2 files"}, logs)
}

func TestIncludeNeedsPatterns(t *testing.T) {
	d := testtree.Dir(t, map[string]string{"a": "a"}, registry.Options{}, nil)
	assert.Error(t, Include(context.Background(), d))

	d.Options = registry.Options{"patterns": "[bad"}
	assert.Error(t, Include(context.Background(), d))
}
