package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN("cms", "p@ss", "db.local", "3307", "cms")
	assert.True(t, strings.HasPrefix(dsn, "cms:p@ss@tcp(db.local:3307)/cms?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "p@ss", cfg.Passwd)
	assert.Equal(t, "db.local:3307", cfg.Addr)
	assert.True(t, cfg.ParseTime)
}

func TestStatements(t *testing.T) {
	src := `-- leading comment; with a semicolon
CREATE TABLE a (id INT);

-- only a comment;
CREATE TABLE b (
    -- inline note
    id INT
);
`
	got := statements(src)
	require.Len(t, got, 2)
	assert.Equal(t, "CREATE TABLE a (id INT)", got[0])
	assert.Equal(t, "CREATE TABLE b (\n    id INT\n)", got[1])
}

func TestStatementsIgnoresSemicolonInComment(t *testing.T) {
	src := `-- users: first; second half of the note
CREATE TABLE users (id INT);`
	got := statements(src)
	require.Len(t, got, 1)
	assert.Equal(t, "CREATE TABLE users (id INT)", got[0])
}

func TestSchemaStatements(t *testing.T) {
	stmts := statements(schema)
	require.Len(t, stmts, 4)
	for i, table := range []string{"users", "user_roles", "profiles", "refresh_tokens"} {
		assert.True(t, strings.HasPrefix(stmts[i], "CREATE TABLE IF NOT EXISTS "+table+" ("), stmts[i])
		assert.NotContains(t, stmts[i], "--")
	}
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "user_roles", "profiles", "refresh_tokens"} {
		mock.ExpectExec("^" + regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS "+table+" (")).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectExec("^" + regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users (")).WillReturnError(boom)
	err = Migrate(context.Background(), db)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
