package local

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := New(&filestore.Config{Root: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, d.Ping(context.Background()))
	return d
}

func TestPutGetStat(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t)

	info, err := d.PutObject(ctx, "exports", "2026/users.csv", strings.NewReader("login\nalice\n"), -1, "")
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.Size)
	assert.NotEmpty(t, info.ETag)
	assert.Contains(t, info.ContentType, "csv")

	obj, err := d.GetObject(ctx, "exports", "2026/users.csv")
	require.NoError(t, err)
	defer obj.Close()
	raw, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "login\nalice\n", string(raw))
	assert.Equal(t, "2026/users.csv", obj.Info().Key)

	_, err = d.StatObject(ctx, "exports", "missing.json")
	assert.True(t, errs.IsNotFound(err))
}

func TestListObjects(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t)
	for _, k := range []string{"a.json", "dir/b.json", "dir/c.json", "dir/sub/d.json"} {
		_, err := d.PutObject(ctx, "b", k, strings.NewReader("{}"), 2, "application/json")
		require.NoError(t, err)
	}

	flat, err := d.ListObjects(ctx, "b", filestore.ListOptions{})
	require.NoError(t, err)
	require.Len(t, flat, 2)
	assert.Equal(t, "a.json", flat[0].Key)
	assert.Equal(t, "dir/", flat[1].Key)
	assert.True(t, flat[1].IsDir)

	all, err := d.ListObjects(ctx, "b", filestore.ListOptions{Prefix: "dir/", Recursive: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := d.ListObjects(ctx, "b", filestore.ListOptions{Recursive: true, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = d.ListObjects(ctx, "nobucket", filestore.ListOptions{})
	assert.True(t, errs.IsNotFound(err))
}

func TestRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t)
	for _, k := range []string{"../x", "/etc/passwd", "a/../../x", ""} {
		_, err := d.PutObject(ctx, "b", k, strings.NewReader("x"), 1, "")
		assert.True(t, errs.IsInvalidInput(err), k)
	}
	assert.True(t, errs.IsInvalidInput(d.EnsureBucket(ctx, "../up")))
}
