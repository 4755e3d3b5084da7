package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS plates").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, AutoMigrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRegistry_SavePlates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reg := NewPGRegistry(mock)
	plates := []PlateRecord{
		{ID: "p1", Filename: "a.3mf", SourcePath: "/tmp/u/a.3mf", PlateIndex: 1, PrintTime: 60, Weight: 1.5, ImageURL: "/static/t1.png"},
		{ID: "p2", Filename: "a.3mf", SourcePath: "/tmp/u/a.3mf", PlateIndex: 2},
	}

	mock.ExpectExec("INSERT INTO plates").
		WithArgs("p1", "a.3mf", "/tmp/u/a.3mf", 1, 60, 1.5, "/static/t1.png").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO plates").
		WithArgs("p2", "a.3mf", "/tmp/u/a.3mf", 2, 0, 0.0, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, reg.SavePlates(context.Background(), plates))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRegistry_SavePlatesError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO plates").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err = NewPGRegistry(mock).SavePlates(context.Background(), []PlateRecord{{ID: "p1"}})

	assert.ErrorContains(t, err, "save plate p1: db down")
}

func TestPGRegistry_LookupPlates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, filename, source_path, plate_index, print_time, weight, image_url, created_at").
		WithArgs([]string{"p1", "ghost"}).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "filename", "source_path", "plate_index", "print_time", "weight", "image_url", "created_at",
		}).AddRow("p1", "a.3mf", "/tmp/u/a.3mf", 1, 60, 1.5, "/static/t1.png", now))

	got, err := NewPGRegistry(mock).LookupPlates(context.Background(), []string{"p1", "ghost"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, PlateRecord{
		ID: "p1", Filename: "a.3mf", SourcePath: "/tmp/u/a.3mf", PlateIndex: 1,
		PrintTime: 60, Weight: 1.5, ImageURL: "/static/t1.png", CreatedAt: now,
	}, got["p1"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRegistry_LookupPlatesQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id").WithArgs(pgxmock.AnyArg()).WillReturnError(errors.New("timeout"))

	_, err = NewPGRegistry(mock).LookupPlates(context.Background(), []string{"p1"})

	assert.ErrorContains(t, err, "lookup plates: timeout")
}

func TestMemoryRegistry(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, reg.SavePlates(ctx, []PlateRecord{{ID: "p1", PlateIndex: 1}, {ID: "p2", PlateIndex: 2}}))
	require.NoError(t, reg.SavePlates(ctx, []PlateRecord{{ID: "p1", PlateIndex: 9}}))

	got, err := reg.LookupPlates(ctx, []string{"p1", "p2", "p3"})

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, got["p1"].PlateIndex, "first registration wins")
	assert.False(t, got["p2"].CreatedAt.IsZero())
}
