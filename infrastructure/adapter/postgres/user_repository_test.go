package postgres

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashionfolio/portfolio-auth/application/port/outbound"
	"github.com/fashionfolio/portfolio-auth/domain/entity"
)

// openTestDB connects to TEST_DATABASE_URL and applies the users migration.
// Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Ping())

	migration, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "001_create_users_table.up.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(migration))
	require.NoError(t, err)

	return db
}

func TestUserRepositoryAdapter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewUserRepositoryAdapter(db)

	suffix := uuid.NewString()[:8]
	user := entity.NewUser(uuid.NewString(), "designer-"+suffix, "Designer-"+suffix+"@Example.com", "$2a$10$hash", entity.RoleUser)
	require.NoError(t, repo.Create(ctx, user))
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM users WHERE id = $1`, user.ID)
	})

	found, err := repo.FindByEmail(ctx, "DESIGNER-"+suffix+"@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "$2a$10$hash", found.Password)

	found, err = repo.FindByUsername(ctx, "designer-"+suffix)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, outbound.ErrUserNotFound)

	dup := entity.NewUser(uuid.NewString(), "designer-"+suffix, "x-"+suffix+"@example.com", "$2a$10$hash", entity.RoleUser)
	assert.ErrorIs(t, repo.Create(ctx, dup), outbound.ErrUserAlreadyExists)

	exists, err := repo.ExistsByEmailOrUsername(ctx, "designer-"+suffix+"@example.com", "")
	require.NoError(t, err)
	assert.True(t, exists)
}
