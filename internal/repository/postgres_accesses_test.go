package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"retail-backoffice/internal/ability"
	"retail-backoffice/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresAccessRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresAccessRepository(db)
}

var accessRowColumns = []string{"id", "tenant_id", "name", "permissions", "field_permissions", "admin_permission", "created_at", "updated_at"}

const testAccessID = "5b0b6a3e-3f7e-4f0c-9a55-1f2a4c6e8d01"

func TestGetAccess_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(accessRowColumns).
		AddRow(testAccessID, "tenant-1", "cashier",
			`{"Sale": true, "Product": {"read": true}}`,
			`{"Product": {"read": ["name", "price"]}}`,
			false, now, now)

	mock.ExpectQuery(`SELECT`).
		WithArgs(testAccessID).
		WillReturnRows(rows)

	a, err := repo.GetAccess(context.Background(), testAccessID)
	require.NoError(t, err)
	assert.Equal(t, "cashier", a.Name)
	assert.True(t, a.Permissions["Sale"].All)
	assert.Equal(t, []string{"name", "price"}, a.FieldPermissions["Product"].Read)
	assert.True(t, a.Can(ability.ActionRead, "Product", "price"))
	assert.False(t, a.Can(ability.ActionRead, "Product", "cost"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccess_NotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs(testAccessID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetAccess(context.Background(), testAccessID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccess_InvalidID(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	_, err := repo.GetAccess(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetAccess(context.Background(), "")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAccesses(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(accessRowColumns).
		AddRow(testAccessID, "tenant-1", "admin", `{}`, nil, true, now, now).
		AddRow("0d6c1d8e-0b1f-4b43-8f0d-2b8c9f3d5e10", "tenant-1", "viewer", `{"Order": {"read": true}}`, `{}`, false, now, now)

	mock.ExpectQuery(`SELECT`).
		WithArgs("tenant-1").
		WillReturnRows(rows)

	list, err := repo.ListAccesses(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].AdminPermission)
	assert.True(t, list[0].Can(ability.ActionDelete, "Anything", ""))
	assert.True(t, list[1].Can(ability.ActionRead, "Order", ""))
	assert.False(t, list[1].Can(ability.ActionEdit, "Order", ""))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccess_GeneratesID(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	access := &domain.Access{
		TenantID:    "tenant-1",
		Name:        "stock",
		Permissions: ability.PermissionMatrix{"StockMovement": ability.GrantAll()},
	}

	mock.ExpectQuery(`INSERT INTO accesses`).
		WithArgs(sqlmock.AnyArg(), "tenant-1", "stock", []byte(`{"StockMovement":true}`), []byte(`{}`), false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testAccessID))

	id, err := repo.CreateAccess(context.Background(), access)
	require.NoError(t, err)
	assert.Equal(t, testAccessID, id)
	assert.NotEmpty(t, access.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccess_Validation(t *testing.T) {
	db, _, repo := setupMockDB(t)
	defer db.Close()

	_, err := repo.CreateAccess(context.Background(), &domain.Access{Name: "x"})
	assert.Error(t, err)
}

func TestUpdatePermissions(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE accesses`).
		WithArgs(testAccessID, []byte(`{"Order":{"read":true}}`), []byte(`{"Order":{"read":["code"]}}`), true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdatePermissions(context.Background(), testAccessID,
		ability.PermissionMatrix{"Order": ability.GrantActions(ability.ActionRead)},
		ability.FieldPermissionMatrix{"Order": {Read: []string{"code"}}},
		true)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePermissions_NotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE accesses`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePermissions(context.Background(), testAccessID, nil, nil, false)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAccess(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM accesses`).
		WithArgs(testAccessID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteAccess(context.Background(), testAccessID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
