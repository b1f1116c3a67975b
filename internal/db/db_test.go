package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	d, err := OpenSQLite(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestRecordUploadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d := openTest(t)

	u := &Upload{Path: "merged/abc.txt", Disk: "local", SessionKey: "abc", Size: 12, OwnerID: "session:s1"}
	created, err := d.RecordUpload(ctx, u)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, u.ID)

	created, err = d.RecordUpload(ctx, &Upload{Path: "merged/abc.txt", Disk: "local", Size: 99, OwnerID: "session:s1"})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := d.FindUploadByPath(ctx, "merged/abc.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 12, got.Size)
}

func TestListAndFindUploadsByOwner(t *testing.T) {
	ctx := context.Background()
	d := openTest(t)

	for _, p := range []string{"merged/a.txt", "merged/b.txt"} {
		_, err := d.RecordUpload(ctx, &Upload{Path: p, Disk: "local", OwnerID: "user:1"})
		require.NoError(t, err)
	}
	_, err := d.RecordUpload(ctx, &Upload{Path: "merged/c.txt", Disk: "local", OwnerID: "user:2"})
	require.NoError(t, err)

	list, err := d.ListUploads(ctx, "user:1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "merged/b.txt", list[0].Path)

	_, err = d.FindUpload(ctx, list[0].ID, "user:2")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := d.FindUpload(ctx, list[1].ID, "user:1")
	require.NoError(t, err)
	assert.Equal(t, "merged/a.txt", got.Path)
}

func TestUsersByAPIKey(t *testing.T) {
	ctx := context.Background()
	d := openTest(t)

	u, key, err := d.CreateUser(ctx, "ci")
	require.NoError(t, err)
	assert.Len(t, key, 40)
	assert.NotEqual(t, key, u.KeyHash)

	got, err := d.FindUserByAPIKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = d.FindUserByAPIKey(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, d.DisableUser(ctx, u.ID))
	_, err = d.FindUserByAPIKey(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, d.DisableUser(ctx, 999), ErrNotFound)

	_, _, err = d.CreateUser(ctx, "")
	assert.Error(t, err)
	require.NoError(t, d.Ping(ctx))
}
