package store

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_EmptyDSN(t *testing.T) {
	err := Migrate("", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestMigrate_InvalidDirection(t *testing.T) {
	for _, dir := range []string{"", "sideways", "UP", "Down"} {
		t.Run(dir, func(t *testing.T) {
			err := Migrate("postgres://localhost/rollcall", dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "direction must be up or down")
		})
	}
}

func TestMigrationFS_PairsUpAndDown(t *testing.T) {
	entries, err := fs.ReadDir(MigrationFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrationFS_DeclaresUniqueConstraints(t *testing.T) {
	body, err := fs.ReadFile(MigrationFS, "migrations/0001_init.up.sql")
	require.NoError(t, err)
	for _, name := range []string{
		"professionals_code_key",
		"professionals_email_key",
		"professionals_registration_code_key",
		"attendance_records_list_professional_key",
		"attendance_records_list_row_key",
	} {
		assert.Contains(t, string(body), name)
	}
}

func TestNilClientsAreUnhealthy(t *testing.T) {
	var db *DB
	var rdb *Redis
	assert.False(t, db.Healthy(context.Background()))
	assert.False(t, rdb.Healthy(context.Background()))
	assert.NoError(t, db.Close())
	assert.NoError(t, rdb.Close())
	assert.Nil(t, NewRedis(""))
}
