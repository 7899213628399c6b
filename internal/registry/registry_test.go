package registry

import (
	"context"
	"testing"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopFile(ctx context.Context, code string, opts Options, f *File) (Result, error) {
	return Result{Code: code}, nil
}

func TestRegistry(t *testing.T) {
	r := New()
	r.Register(&Plugin{Name: "noop", File: noopFile})

	t.Run("lookup", func(t *testing.T) {
		p, err := r.Lookup("noop")
		require.NoError(t, err)
		assert.Equal(t, "noop", p.Name)
		assert.True(t, p.Transforms())
		assert.False(t, p.Observes())
	})

	t.Run("missing plugin", func(t *testing.T) {
		_, err := r.Lookup("sass")
		require.Error(t, err)
		assert.Equal(t, builderr.PluginNotFound, builderr.CodeOf(err))
		assert.ErrorContains(t, err, "sass")
	})

	t.Run("duplicate panics", func(t *testing.T) {
		assert.Panics(t, func() { r.Register(&Plugin{Name: "noop", File: noopFile}) })
	})

	t.Run("names are sorted", func(t *testing.T) {
		r.Register(&Plugin{Name: "alpha", File: noopFile})
		assert.Equal(t, []string{"alpha", "noop"}, r.Names())
	})
}

func TestValidateRegistry(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := New()
		r.Register(&Plugin{Name: "ok", File: noopFile, Keys: []string{"level"}, Defaults: Options{"level": 1}})
		assert.NoError(t, r.ValidateRegistry(context.Background()))
	})

	t.Run("invalid", func(t *testing.T) {
		r := New()
		r.Register(&Plugin{Name: "empty"})
		r.Register(&Plugin{Name: "keys", File: noopFile, Keys: []string{"a"}, Defaults: Options{"b": true}})
		r.Register(&Plugin{
			Name:        "both",
			File:        noopFile,
			DirCallback: func(ctx context.Context, d *Dir, done func(error)) { done(nil) },
		})

		err := r.ValidateRegistry(context.Background())
		require.Error(t, err)
		assert.ErrorContains(t, err, "plugin 'empty': no transform or observe function")
		assert.ErrorContains(t, err, "default option 'b'")
		assert.ErrorContains(t, err, "plugin 'both': declares both per-file and directory transforms")
	})
}

func TestOptions(t *testing.T) {
	o := Options{"level": float64(9), "name": "x", "list": []any{"a", 1, "b"}, "one": "only"}

	assert.Equal(t, 9, o.Int("level", 0))
	assert.Equal(t, 3, o.Int("missing", 3))
	assert.Equal(t, "x", o.String("name", ""))
	assert.Equal(t, "d", o.String("level", "d"))
	assert.Equal(t, []string{"a", "b"}, o.Strings("list"))
	assert.Equal(t, []string{"only"}, o.Strings("one"))

	merged := Options{"name": "y"}.Merge(Options{"name": "x", "level": 1})
	assert.Equal(t, Options{"name": "y", "level": 1}, merged)
}
