package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"vfxpublish/internal/service"
	"vfxpublish/internal/testsupport"
)

func TestEnsurePathCreatesMissingSegments(t *testing.T) {
	store := testsupport.NewMemStore()
	folders := service.NewFolderService(store, zaptest.NewLogger(t))
	ctx := context.Background()

	hero, err := folders.EnsurePath(ctx, "demo", "assets/characters/hero/")
	require.NoError(t, err)
	assert.Equal(t, "/assets/characters/hero", hero.Path)
	assert.Equal(t, "hero", hero.Name)
	assert.Equal(t, 2, hero.Level)
	assert.Equal(t, "assets/characters", hero.Hierarchy())

	again, err := folders.EnsurePath(ctx, "demo", "/assets/characters/hero")
	require.NoError(t, err)
	assert.Equal(t, hero.ID, again.ID)

	characters, err := folders.GetByPath(ctx, "demo", "/assets/characters")
	require.NoError(t, err)
	require.NotNil(t, hero.ParentID)
	assert.Equal(t, characters.ID, *hero.ParentID)
}

func TestEnsurePathRejectsEmptyPath(t *testing.T) {
	folders := service.NewFolderService(testsupport.NewMemStore(), zaptest.NewLogger(t))
	_, err := folders.EnsurePath(context.Background(), "demo", "//")
	assert.ErrorIs(t, err, service.ErrInvalidFolder)
}

func TestCreateFolder(t *testing.T) {
	store := testsupport.NewMemStore()
	folders := service.NewFolderService(store, zaptest.NewLogger(t))
	ctx := context.Background()

	assets, err := folders.CreateFolder(ctx, "demo", "/", "assets")
	require.NoError(t, err)
	assert.Equal(t, "/assets", assets.Path)
	assert.Nil(t, assets.ParentID)

	props, err := folders.CreateFolder(ctx, "demo", "/assets", "props")
	require.NoError(t, err)
	assert.Equal(t, "/assets/props", props.Path)
	assert.Equal(t, 1, props.Level)

	_, err = folders.CreateFolder(ctx, "demo", "/missing", "x")
	assert.ErrorIs(t, err, service.ErrFolderNotFound)

	_, err = folders.CreateFolder(ctx, "demo", "/assets", "a/b")
	assert.ErrorIs(t, err, service.ErrInvalidFolder)

	_, err = folders.CreateFolder(ctx, "demo", "/assets", "props")
	assert.Error(t, err)
}

func TestListChildren(t *testing.T) {
	store := testsupport.NewMemStore()
	folders := service.NewFolderService(store, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := folders.EnsurePath(ctx, "demo", "/assets/props")
	require.NoError(t, err)
	_, err = folders.EnsurePath(ctx, "demo", "/assets/characters")
	require.NoError(t, err)
	_, err = folders.EnsurePath(ctx, "demo", "/shots")
	require.NoError(t, err)

	top, err := folders.ListChildren(ctx, "demo", "/")
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "assets", top[0].Name)
	assert.Equal(t, "shots", top[1].Name)

	children, err := folders.ListChildren(ctx, "demo", "/assets")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "characters", children[0].Name)
	assert.Equal(t, "props", children[1].Name)

	_, err = folders.ListChildren(ctx, "demo", "/nope")
	assert.ErrorIs(t, err, service.ErrFolderNotFound)
}

func TestGetByPathNotFound(t *testing.T) {
	folders := service.NewFolderService(testsupport.NewMemStore(), zaptest.NewLogger(t))
	_, err := folders.GetByPath(context.Background(), "demo", "/assets/hero")
	assert.ErrorIs(t, err, service.ErrFolderNotFound)
	assert.Contains(t, err.Error(), "demo/assets/hero")
	assert.NotContains(t, err.Error(), "//")
}
