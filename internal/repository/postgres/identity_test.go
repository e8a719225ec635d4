package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	apperrors "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/errors"
)

func newIdentityTestFixture(t *testing.T) (*IdentityRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewIdentityRepository(mock)
	return repo, mock
}

func sampleIdentity() *domain.Identity {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Identity{
		ID:           "user-1",
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice Smith",
		Role:         domain.RolePro,
		PasswordHash: "$2a$10$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func identityColumns() []string {
	return []string{"id", "username", "email", "full_name", "role", "password_hash", "created_at", "updated_at"}
}

func identityRow(id *domain.Identity) *pgxmock.Rows {
	return pgxmock.NewRows(identityColumns()).AddRow(
		id.ID, id.Username, id.Email, id.FullName, id.Role, id.PasswordHash, id.CreatedAt, id.UpdatedAt,
	)
}

func TestIdentityRepository_GetByUsername_Success(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	id := sampleIdentity()

	mock.ExpectQuery("SELECT .+ FROM identities WHERE username =").
		WithArgs(id.Username).
		WillReturnRows(identityRow(id))

	got, err := repo.GetByUsername(context.Background(), id.Username)
	require.NoError(t, err)
	assert.Equal(t, id.ID, got.ID)
	assert.Equal(t, domain.RolePro, got.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_GetByUsername_NotFound(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM identities WHERE username =").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(identityColumns()))

	got, err := repo.GetByUsername(context.Background(), "ghost")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_GetByID_Success(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	id := sampleIdentity()

	mock.ExpectQuery("SELECT .+ FROM identities WHERE id =").
		WithArgs(id.ID).
		WillReturnRows(identityRow(id))

	got, err := repo.GetByID(context.Background(), id.ID)
	require.NoError(t, err)
	assert.Equal(t, id.Username, got.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_UpdatePasswordHash_Success(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE identities SET password_hash =").
		WithArgs("$2a$10$newhash", pgxmock.AnyArg(), "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdatePasswordHash(context.Background(), "user-1", "$2a$10$newhash")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_UpdatePasswordHash_NotFound(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE identities SET password_hash =").
		WithArgs("$2a$10$newhash", pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePasswordHash(context.Background(), "ghost", "$2a$10$newhash")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
