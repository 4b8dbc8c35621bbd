package trips

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Row scanning
// ============================================================================

// fakeRows implements pgx.Rows over fixed row data. A non-nil readErr is
// surfaced through Err() once iteration stops, the way a dropped connection
// truncates a result set mid-stream.
type fakeRows struct {
	data         [][]any
	currentIndex int
	readErr      error
	done         bool
	closed       bool
}

func newFakeRows(data [][]any, readErr error) *fakeRows {
	return &fakeRows{data: data, currentIndex: -1, readErr: readErr}
}

func (f *fakeRows) Close() {
	f.closed = true
}

func (f *fakeRows) Err() error {
	if f.done {
		return f.readErr
	}
	return nil
}

func (f *fakeRows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag("SELECT")
}

func (f *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}

func (f *fakeRows) Next() bool {
	f.currentIndex++
	if f.currentIndex >= len(f.data) {
		f.done = true
		return false
	}
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	if f.currentIndex < 0 || f.currentIndex >= len(f.data) {
		return errors.New("no row to scan")
	}
	row := f.data[f.currentIndex]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, v := range row {
		destVal := reflect.ValueOf(dest[i])
		if destVal.Kind() != reflect.Ptr {
			return errors.New("destination must be a pointer")
		}
		destVal.Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func (f *fakeRows) Values() ([]any, error) {
	if f.currentIndex < 0 || f.currentIndex >= len(f.data) {
		return nil, errors.New("no row")
	}
	return f.data[f.currentIndex], nil
}

func (f *fakeRows) RawValues() [][]byte {
	return nil
}

func (f *fakeRows) Conn() *pgx.Conn {
	return nil
}

func cleanedRow(pickup time.Time, zone int) []any {
	passengers := 1
	return []any{
		pickup, pickup.Add(15 * time.Minute), zone, zone + 1,
		&passengers, 2.5, 12.0,
	}
}

func TestScanCleanedRows(t *testing.T) {
	pickup := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rows := newFakeRows([][]any{
		cleanedRow(pickup, 42),
		cleanedRow(pickup.Add(time.Hour), 87),
	}, nil)

	records, err := scanCleanedRows(rows, VehicleYellow)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, VehicleYellow, records[0].VehicleType)
	assert.Equal(t, 42, records[0].PickupZone)
	assert.Equal(t, 43, records[0].DropoffZone)
	assert.Equal(t, pickup.Add(time.Hour), records[1].PickupAt)
}

func TestScanCleanedRows_MidStreamErrorSurfaces(t *testing.T) {
	pickup := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	readErr := errors.New("connection reset")
	rows := newFakeRows([][]any{cleanedRow(pickup, 42)}, readErr)

	records, err := scanCleanedRows(rows, VehicleYellow)
	require.Error(t, err)
	assert.ErrorIs(t, err, readErr)
	assert.Nil(t, records)
}

func TestScanCleanedPeriodRows(t *testing.T) {
	pickup := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	passengers := 2
	row := []any{
		"green", pickup, pickup.Add(20 * time.Minute), 10, 11,
		&passengers, 4.2, 18.5,
	}

	records, err := scanCleanedPeriodRows(newFakeRows([][]any{row}, nil))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, VehicleGreen, records[0].VehicleType)
	require.NotNil(t, records[0].Passengers)
	assert.Equal(t, 2, *records[0].Passengers)
}

func TestScanCleanedPeriodRows_MidStreamErrorSurfaces(t *testing.T) {
	readErr := errors.New("connection reset")

	records, err := scanCleanedPeriodRows(newFakeRows(nil, readErr))
	require.Error(t, err)
	assert.ErrorIs(t, err, readErr)
	assert.Nil(t, records)
}
