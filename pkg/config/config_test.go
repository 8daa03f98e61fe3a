package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T, baseDir string) {
	t.Setenv("BASEDIR", baseDir)
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("FILEMANAGER_USERNAME", "admin")
	t.Setenv("USERNAME", "")
	t.Setenv("FILEMANAGER_PASSWORD", "hunter2")
	t.Setenv("PASSWORD", "")
}

func TestLoad_FromEnvironment(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	baseDir := t.TempDir()
	setRequiredEnv(t, baseDir)
	t.Setenv("SESSION_LIFETIME", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Clean(baseDir), cfg.FileManager.BaseDir)
	assert.Equal(t, "s3cret", cfg.Security.SecretKey)
	assert.Equal(t, "admin", cfg.Auth.Username)
	assert.Equal(t, "hunter2", cfg.Auth.Password)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionLifetime)
	assert.Equal(t, time.Hour, cfg.Security.CSRFTimeLimit)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Upload.MaxFileSizeMB)
	assert.Equal(t, int64(3<<20), cfg.Upload.MaxFileSize())
	assert.Equal(t, 30, cfg.Upload.MaxFiles)
	assert.False(t, cfg.WebDAV.Enabled)
}

func TestLoad_MissingRequiredValues(t *testing.T) {
	for _, env := range []string{"BASEDIR", "SECRET_KEY", "FILEMANAGER_USERNAME", "FILEMANAGER_PASSWORD"} {
		t.Run(env, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)

			setRequiredEnv(t, t.TempDir())
			t.Setenv(env, "")

			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissing), "expected ErrMissing, got %v", err)
		})
	}
}

func TestLoad_RelativeBaseDirIsMadeAbsolute(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	parent := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(parent, "files"), 0755))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(parent))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	setRequiredEnv(t, "files")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.FileManager.BaseDir))
	assert.Equal(t, "files", filepath.Base(cfg.FileManager.BaseDir))
}

func TestLoad_BaseDirMustExist(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setRequiredEnv(t, filepath.Join(t.TempDir(), "missing"))

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_BaseDirMustBeDirectory(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	setRequiredEnv(t, file)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestLoadLocal_OnlyNeedsBaseDir(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	baseDir := t.TempDir()
	setRequiredEnv(t, baseDir)
	t.Setenv("SECRET_KEY", "")
	t.Setenv("FILEMANAGER_PASSWORD", "")

	cfg, err := LoadLocal()
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(baseDir), cfg.FileManager.BaseDir)

	t.Setenv("BASEDIR", "")
	_, err = LoadLocal()
	assert.True(t, errors.Is(err, ErrMissing))
}
