package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAferoStore(t *testing.T) {
	memFs := afero.NewMemMapFs()
	store := NewAferoStore(memFs)
	ctx := context.Background()

	name := "user-1/avatar.png"
	content := "not really a png"

	t.Run("Save", func(t *testing.T) {
		n, err := store.Save(ctx, name, bytes.NewReader([]byte(content)))
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), n)

		exists, err := afero.Exists(memFs, "/"+name)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Open", func(t *testing.T) {
		f, err := store.Open(ctx, name)
		require.NoError(t, err)
		defer f.Close()

		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, name))
		exists, err := afero.Exists(memFs, "/"+name)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("rejects traversal", func(t *testing.T) {
		_, err := store.Save(ctx, "../etc/passwd", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidPath)

		_, err = store.Open(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidPath)
	})
}

func TestObjectName(t *testing.T) {
	a := ObjectName("user-1", "Photo.JPG")
	b := ObjectName("user-1", "Photo.JPG")

	assert.True(t, strings.HasPrefix(a, "user-1/"))
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.NotEqual(t, a, b)
}
