package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/fkmap"
)

func TestSimilarPairsNeighborhoodQuery(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	rows := pgxmock.NewRows([]string{"a", "b", "name_a", "name_b", "parent", "score"}).
		AddRow("nb-1", "nb-2", "Centro", "Centro Velho", "city-1", 0.82)
	mockPool.ExpectQuery("SELECT a.id::text, b.id::text").WillReturnRows(rows)

	store := newWithPool(mockPool, nil)
	pairs, err := store.SimilarPairs(context.Background(), domain.KindNeighborhood, 0.6, 50)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "nb-1", pairs[0].IDA)
	assert.Equal(t, "city-1", pairs[0].ParentID)
	assert.InDelta(t, 0.82, pairs[0].Score, 0.0001)

	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMemberNameUsesEntityTable(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectQuery("SELECT name FROM streets").
		WithArgs("st-1").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("Rua A"))

	store := newWithPool(mockPool, nil)
	name, err := store.MemberName(context.Background(), domain.KindStreet, "st-1")
	require.NoError(t, err)
	assert.Equal(t, "Rua A", name)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCountReferences(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	fk := fkmap.ForeignKeysFor(domain.KindNeighborhood)[0]
	mockPool.ExpectQuery("SELECT COUNT\\(\\*\\) FROM streets").
		WithArgs("nb-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	store := newWithPool(mockPool, nil)
	n, err := store.CountReferences(context.Background(), fk, "nb-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectBegin()
	mockPool.ExpectCommit()

	store := newWithPool(mockPool, nil)
	err = store.WithTx(context.Background(), 0, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectBegin()
	mockPool.ExpectRollback()

	store := newWithPool(mockPool, nil)
	boom := assert.AnError
	err = store.WithTx(context.Background(), 0, func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mockPool.ExpectationsWereMet())
}
