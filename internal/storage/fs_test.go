package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestFSStore_WriteReadDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, "Acme_Plumbing", "claude_report_20240115_143022.html", []byte("<h3>Claude AI Engine</h3>")))

	data, err := s.Read(ctx, "Acme_Plumbing", "claude_report_20240115_143022.html")
	require.NoError(t, err)
	assert.Equal(t, "<h3>Claude AI Engine</h3>", string(data))

	deleted, err := s.Delete(ctx, "Acme_Plumbing", "claude_report_20240115_143022.html")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(ctx, "Acme_Plumbing", "claude_report_20240115_143022.html")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.Read(ctx, "Acme_Plumbing", "claude_report_20240115_143022.html")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFSStore_ListSortedAndScoped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, "Acme", "b.csv", []byte("b")))
	require.NoError(t, s.Write(ctx, "Acme", "a.csv", []byte("a")))
	require.NoError(t, s.Write(ctx, "Bolt", "c.csv", []byte("c")))
	require.NoError(t, s.Write(ctx, "", ".test_run_1.json", []byte("{}")))
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), ".cache"), 0o755))

	scopes, err := s.ListScopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Bolt"}, scopes)

	objects, err := s.List(ctx, "Acme")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "a.csv", objects[0].Name)
	assert.Equal(t, "Acme/b.csv", objects[1].Key())

	root, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.Equal(t, ".test_run_1.json", root[0].Name)

	missing, err := s.List(ctx, "Nobody")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestFSStore_RejectsEscapingNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var nameErr *NameError
	assert.ErrorAs(t, s.Write(ctx, "..", "x.csv", nil), &nameErr)
	assert.ErrorAs(t, s.Write(ctx, "Acme", "../x.csv", nil), &nameErr)
	_, err := s.Read(ctx, "Acme/sub", "x.csv")
	assert.ErrorAs(t, err, &nameErr)
	_, err = s.List(ctx, "..")
	assert.ErrorAs(t, err, &nameErr)
}

func TestFSStore_AbsRel(t *testing.T) {
	s := newTestStore(t)

	abs := s.Abs("Acme/claude_queries_Acme_20240115_143022.csv")
	assert.True(t, filepath.IsAbs(abs))

	key, err := s.Rel(abs)
	require.NoError(t, err)
	assert.Equal(t, "Acme/claude_queries_Acme_20240115_143022.csv", key)

	_, err = s.Rel(filepath.Join(filepath.Dir(s.Root()), "elsewhere.csv"))
	assert.Error(t, err)
}

func TestSplitJoinKey(t *testing.T) {
	scope, name := SplitKey("Acme/a.csv")
	assert.Equal(t, "Acme", scope)
	assert.Equal(t, "a.csv", name)
	assert.Equal(t, "Acme/a.csv", JoinKey(scope, name))

	scope, name = SplitKey(".test_run_1.json")
	assert.Equal(t, "", scope)
	assert.Equal(t, ".test_run_1.json", name)
	assert.Equal(t, ".test_run_1.json", JoinKey("", name))
}
