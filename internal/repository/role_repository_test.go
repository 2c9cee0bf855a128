package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cms-backend/internal/model"
)

func TestGetPrimaryRoleDefaultsToUser(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT role FROM user_roles").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}))
	mock.ExpectQuery("SELECT role FROM user_roles").WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("moderator"))

	repo := NewRoleRepo(db)
	role, err := repo.GetPrimaryRole(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, role)

	role, err = repo.GetPrimaryRole(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, model.RoleModerator, role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPrimaryRoleIgnoresUnknownValue(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT role FROM user_roles").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("owner"))

	role, err := NewRoleRepo(db).GetPrimaryRole(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignRole(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO user_roles (user_id, role) VALUES (?,?)")).
		WithArgs("u1", "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewRoleRepo(db).AssignRole(context.Background(), "u1", model.RoleAdmin))
	assert.NoError(t, mock.ExpectationsWereMet())
}
