package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, int64(268435456), cfg.Upload.ChunkSize)
	require.Equal(t, 3, cfg.Upload.MaxRetries)
	require.Equal(t, int64(3), cfg.Upload.MaxConcurrent)
	require.Equal(t, 24*time.Hour, cfg.Upload.ReferenceTTL)
	require.Equal(t, 5*time.Minute, cfg.OAuth.RefreshMargin)
	require.Equal(t, "uploads", cfg.MinIO.BucketName)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("UPLOAD_CHUNK_SIZE", "1048576")
	t.Setenv("UPLOAD_MAX_CONCURRENT", "7")
	t.Setenv("REFERENCE_TTL", "1h")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, int64(1048576), cfg.Upload.ChunkSize)
	require.Equal(t, int64(7), cfg.Upload.MaxConcurrent)
	require.Equal(t, time.Hour, cfg.Upload.ReferenceTTL)
	require.Equal(t, "db.internal", cfg.Database.Host)
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: "5432", User: "u", Password: "p",
		DBName: "uploads", SSLMode: "disable",
	}
	require.Equal(t, "postgres://u:p@localhost:5432/uploads?sslmode=disable", db.ConnectionString())
}
