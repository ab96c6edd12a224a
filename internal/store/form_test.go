package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/engine/internal/engineerr"
)

func TestFormStore_GetByToken_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	store := NewFormStore(db)
	mock.ExpectQuery(`SELECT \* FROM form_trigger WHERE form_token = \$1`).
		WithArgs("tok-missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByToken(context.Background(), "tok-missing")
	require.Error(t, err)
	assert.Equal(t, engineerr.KindNotFound, engineerr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormStore_HasSubmission(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	store := NewFormStore(db)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM form_submission WHERE execution_id = \$1 AND node_id = \$2`).
		WithArgs("exec-1", "node-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	has, err := store.HasSubmission(context.Background(), "exec-1", "node-1")
	require.NoError(t, err)
	assert.False(t, has)
	require.NoError(t, mock.ExpectationsWereMet())
}
