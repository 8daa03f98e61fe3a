package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/filemanager-go/internal/models"
	"github.com/denysvitali/filemanager-go/pkg/storage"
)

func newTestServer(t *testing.T) (*Server, string) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	base := t.TempDir()
	store, err := storage.New(base, logger)
	require.NoError(t, err)
	return NewServer(logger, store), base
}

func TestListDirectory(t *testing.T) {
	s, base := newTestServer(t)
	require.NoError(t, os.Mkdir(filepath.Join(base, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "a.txt"), []byte("hi"), 0644))

	out, err := s.ListDirectory(context.Background(), "")
	require.NoError(t, err)

	var res listResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Directories, 1)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "docs", res.Directories[0].Name)
	assert.Equal(t, "a.txt", res.Files[0].Name)

	_, err = s.ListDirectory(context.Background(), "a.txt")
	assert.True(t, errors.Is(err, storage.ErrNotDirectory))

	_, err = s.ListDirectory(context.Background(), "../")
	assert.True(t, errors.Is(err, storage.ErrOutsideBase))
}

func TestCreateFolderAndDelete(t *testing.T) {
	s, base := newTestServer(t)
	ctx := context.Background()

	created, err := s.CreateFolder(ctx, "", "projects")
	require.NoError(t, err)
	assert.Equal(t, "projects", created)
	assert.DirExists(t, filepath.Join(base, "projects"))

	_, err = s.CreateFolder(ctx, "", "projects")
	assert.True(t, errors.Is(err, storage.ErrAlreadyExists))

	parent, err := s.Delete(ctx, "projects")
	require.NoError(t, err)
	assert.Equal(t, "", parent)
	assert.NoDirExists(t, filepath.Join(base, "projects"))

	_, err = s.Delete(ctx, "")
	assert.True(t, errors.Is(err, storage.ErrRootDelete))

	_, err = s.Delete(ctx, "../outside")
	assert.True(t, errors.Is(err, storage.ErrOutsideBase))
}

func TestDelete_DanglingSymlink(t *testing.T) {
	s, base := newTestServer(t)
	link := filepath.Join(base, "dangling")
	require.NoError(t, os.Symlink("/nonexistent/target", link))

	parent, err := s.Delete(context.Background(), "dangling")
	require.NoError(t, err)
	assert.Equal(t, "", parent)
	_, err = os.Lstat(link)
	assert.True(t, os.IsNotExist(err))
}

func TestHandleServerInfo(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleServerInfo(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var info models.ServerInfoResponse
	require.NoError(t, json.Unmarshal([]byte(text.Text), &info))
	assert.False(t, info.StartTime.IsZero())
	assert.GreaterOrEqual(t, info.Uptime, 0.0)
}
