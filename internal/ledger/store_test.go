package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets/memory"
	"kakeibo/internal/sheets/xlsx"
)

var today = time.Date(2024, 5, 20, 15, 30, 0, 0, time.UTC)

func rec(daysAgo int, kind core.Kind, cat string, amount int64) core.Record {
	return core.Record{
		Date:     core.DateOf(today).AddDays(-daysAgo),
		Kind:     kind,
		Category: cat,
		Amount:   amount,
	}
}

func newStore(t *testing.T, seed ...core.Record) (*Store, *memory.Table) {
	t.Helper()
	table := memory.New(seed...)
	return New(table, WithClock(func() time.Time { return today })), table
}

func TestAppendThenWindowed(t *testing.T) {
	ctx := context.Background()
	s, table := newStore(t)

	pos, err := s.Append(ctx, rec(0, core.Expense, "食費", 1500))
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
	assert.Equal(t, 1, table.Saves())

	v, err := s.Windowed(ctx, today, 7)
	require.NoError(t, err)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, 0, v.Rows[0].Position)
	assert.Equal(t, int64(1500), v.Rows[0].Record.Amount)

	totals := v.Totals()
	assert.Equal(t, int64(0), totals.Income)
	assert.Equal(t, int64(1500), totals.Expense)
}

func TestAppendPersistsAcrossStores(t *testing.T) {
	ctx := context.Background()
	s, table := newStore(t, rec(1, core.Income, "給与", 300000))

	r := rec(0, core.Expense, "交通", 220)
	_, err := s.Append(ctx, r)
	require.NoError(t, err)

	fresh := New(table)
	records, err := fresh.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[1].Equal(r))
}

func TestAppendRejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	s, table := newStore(t)

	_, err := s.Append(ctx, core.Record{Date: core.DateOf(today), Kind: core.Expense, Category: "", Amount: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, err = s.Append(ctx, core.Record{Date: core.DateOf(today), Kind: core.Expense, Category: "食費", Amount: -1})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, 0, table.Saves())
}

func TestAppendStorageFailureLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	s, table := newStore(t, rec(0, core.Expense, "食費", 100))
	_, err := s.Records(ctx)
	require.NoError(t, err)
	rev := s.Revision()

	table.SaveErr = errors.New("disk full")
	_, err = s.Append(ctx, rec(0, core.Expense, "日用品", 200))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)

	records, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, rev, s.Revision())
}

func TestLoadFailureIsStorageUnavailable(t *testing.T) {
	table := memory.New()
	table.LoadErr = errors.New("locked")
	s := New(table)

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
}

func TestWindowBoundaries(t *testing.T) {
	records := []core.Record{
		rec(10, core.Expense, "食費", 1),
		rec(7, core.Expense, "食費", 2),
		rec(2, core.Income, "給与", 3),
		rec(0, core.Expense, "交通", 4),
		rec(-1, core.Expense, "娯楽", 5),
		{Date: core.LenientDate("そのうち"), Kind: core.Expense, Category: "その他", Amount: 6},
	}

	v := Window(records, today, 7)
	require.Len(t, v.Rows, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{v.Rows[0].Position, v.Rows[1].Position, v.Rows[2].Position})
	assert.Equal(t, core.NewDate(2024, 5, 13), v.From)
	assert.Equal(t, core.NewDate(2024, 5, 20), v.To)
}

func TestWindowTenDaysVersusTwoDays(t *testing.T) {
	records := []core.Record{
		rec(10, core.Expense, "食費", 800),
		rec(2, core.Expense, "日用品", 300),
	}
	v := Window(records, today, 7)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, 1, v.Rows[0].Position)
	assert.Equal(t, "日用品", v.Rows[0].Record.Category)
}

func TestWindowDefaultsDays(t *testing.T) {
	v := Window([]core.Record{rec(7, core.Expense, "食費", 1)}, today, 0)
	assert.Len(t, v.Rows, 1)
	v = Window([]core.Record{rec(8, core.Expense, "食費", 1)}, today, -3)
	assert.Empty(t, v.Rows)
}

func TestWindowedDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	s, table := newStore(t, rec(1, core.Expense, "食費", 1))

	_, err := s.Windowed(ctx, today, 7)
	require.NoError(t, err)
	_, err = s.Windowed(ctx, today, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Saves())
}

func TestUpdateAtReplacesAllFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t,
		rec(20, core.Expense, "食費", 1000),
		rec(1, core.Expense, "食費", 500),
	)

	v, err := s.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, v.Rows, 1)

	updated := rec(1, core.Income, "給与", 2000)
	require.NoError(t, s.UpdateAt(ctx, v.Rows[0].Position, updated))

	records, err := s.Records(ctx)
	require.NoError(t, err)
	assert.True(t, records[1].Equal(updated))
	assert.Equal(t, "食費", records[0].Category)
}

func TestUpdateAtOutOfRange(t *testing.T) {
	ctx := context.Background()
	s, table := newStore(t, rec(0, core.Expense, "食費", 1))

	err := s.UpdateAt(ctx, 1, rec(0, core.Expense, "食費", 2))
	assert.ErrorIs(t, err, core.ErrPositionOutOfRange)
	err = s.UpdateAt(ctx, -1, rec(0, core.Expense, "食費", 2))
	assert.ErrorIs(t, err, core.ErrPositionOutOfRange)
	assert.Equal(t, 0, table.Saves())
}

func TestUpdateAtRejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, rec(0, core.Expense, "食費", 1))
	err := s.UpdateAt(ctx, 0, core.Record{Kind: "refund", Category: "食費", Amount: 1})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestDeleteAtShiftsPositions(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t,
		rec(3, core.Expense, "A", 1),
		rec(2, core.Expense, "B", 2),
		rec(1, core.Expense, "C", 3),
	)

	require.NoError(t, s.DeleteAt(ctx, 1))

	v, err := s.Windowed(ctx, today, 7)
	require.NoError(t, err)
	require.Len(t, v.Rows, 2)
	assert.Equal(t, "A", v.Rows[0].Record.Category)
	assert.Equal(t, 0, v.Rows[0].Position)
	assert.Equal(t, "C", v.Rows[1].Record.Category)
	assert.Equal(t, 1, v.Rows[1].Position)
}

func TestDeleteAtOutOfRange(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, rec(0, core.Expense, "食費", 1))
	assert.ErrorIs(t, s.DeleteAt(ctx, 5), core.ErrPositionOutOfRange)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteManyIsSingleRewrite(t *testing.T) {
	ctx := context.Background()
	s, table := newStore(t,
		rec(3, core.Expense, "A", 1),
		rec(2, core.Expense, "B", 2),
		rec(1, core.Expense, "C", 3),
		rec(0, core.Expense, "D", 4),
	)

	require.NoError(t, s.DeleteMany(ctx, []int{3, 0, 3}))
	assert.Equal(t, 1, table.Saves())

	records, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "B", records[0].Category)
	assert.Equal(t, "C", records[1].Category)
}

func TestDeleteManyFailsWholeOnBadPosition(t *testing.T) {
	ctx := context.Background()
	s, table := newStore(t, rec(0, core.Expense, "A", 1), rec(0, core.Expense, "B", 2))

	err := s.DeleteMany(ctx, []int{0, 9})
	assert.ErrorIs(t, err, core.ErrPositionOutOfRange)
	assert.Equal(t, 0, table.Saves())

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDeleteMatching(t *testing.T) {
	ctx := context.Background()
	dup := rec(1, core.Expense, "食費", 500)
	s, _ := newStore(t, dup, dup, rec(0, core.Income, "給与", 1000))

	err := s.DeleteMatching(ctx, dup)
	assert.ErrorIs(t, err, core.ErrAmbiguousMatch)

	err = s.DeleteMatching(ctx, rec(5, core.Expense, "娯楽", 1))
	assert.ErrorIs(t, err, core.ErrAmbiguousMatch)

	require.NoError(t, s.DeleteMatching(ctx, rec(0, core.Income, "給与", 1000)))
	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpdateMatching(t *testing.T) {
	ctx := context.Background()
	target := rec(1, core.Expense, "食費", 500)
	s, _ := newStore(t, target, rec(0, core.Expense, "交通", 200))

	next := rec(1, core.Expense, "食費", 550)
	require.NoError(t, s.UpdateMatching(ctx, target, next))

	records, err := s.Records(ctx)
	require.NoError(t, err)
	assert.True(t, records[0].Equal(next))
}

func TestStaleViewIsRejected(t *testing.T) {
	ctx := context.Background()
	s, table := newStore(t,
		rec(2, core.Expense, "A", 1),
		rec(1, core.Expense, "B", 2),
	)

	v, err := s.Windowed(ctx, today, 7)
	require.NoError(t, err)

	// Another process shrinks the table; the reload observes it.
	table.Put([]core.Record{rec(1, core.Expense, "B", 2)})
	require.NoError(t, s.Reload(ctx))

	err = s.DeleteManyAtRevision(ctx, v.Revision, []int{v.Rows[1].Position})
	assert.ErrorIs(t, err, core.ErrStaleView)

	err = s.UpdateAtRevision(ctx, v.Revision, 0, rec(1, core.Expense, "B", 3))
	assert.ErrorIs(t, err, core.ErrStaleView)

	fresh, err := s.Windowed(ctx, today, 7)
	require.NoError(t, err)
	require.NoError(t, s.UpdateAtRevision(ctx, fresh.Revision, 0, rec(1, core.Expense, "B", 3)))
}

func TestReloadKeepsRevisionWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, rec(0, core.Expense, "A", 1))

	_, err := s.Load(ctx)
	require.NoError(t, err)
	rev := s.Revision()

	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, rev, s.Revision())
}

func TestRevisionNotSharedBetweenStores(t *testing.T) {
	ctx := context.Background()
	table := memory.New(
		rec(2, core.Expense, "A", 1),
		rec(1, core.Expense, "B", 2),
		rec(0, core.Expense, "C", 3),
	)
	first := New(table, WithClock(func() time.Time { return today }))
	v, err := first.Windowed(ctx, today, 7)
	require.NoError(t, err)
	require.Equal(t, "C", v.Rows[2].Record.Category)

	// The table changes behind the first store, then a second store (as in
	// a restarted process) sees the new content.
	table.Put([]core.Record{
		rec(1, core.Expense, "B", 2),
		rec(0, core.Expense, "C", 3),
		rec(0, core.Expense, "D", 4),
	})
	second := New(table, WithClock(func() time.Time { return today }))
	_, err = second.Records(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Revision(), second.Revision())

	err = second.DeleteManyAtRevision(ctx, v.Revision, []int{v.Rows[2].Position})
	assert.ErrorIs(t, err, core.ErrStaleView)
	err = second.UpdateAtRevision(ctx, v.Revision, v.Rows[2].Position, rec(0, core.Expense, "X", 9))
	assert.ErrorIs(t, err, core.ErrStaleView)

	records, err := table.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "D", records[2].Category)
}

func TestRevisionsIncreaseAcrossStores(t *testing.T) {
	ctx := context.Background()
	a, _ := newStore(t, rec(0, core.Expense, "A", 1))
	_, err := a.Append(ctx, rec(0, core.Expense, "B", 2))
	require.NoError(t, err)

	b, _ := newStore(t)
	assert.Greater(t, b.Revision(), a.Revision())
	assert.Less(t, b.Revision(), uint64(1)<<53)
}

func TestPaddedCategoryRoundTripsThroughWorkbook(t *testing.T) {
	ctx := context.Background()
	table := xlsx.New(filepath.Join(t.TempDir(), "kakeibo.xlsx"))
	s := New(table, WithClock(func() time.Time { return today }))

	_, err := s.Append(ctx, rec(0, core.Expense, " food ", 500))
	require.NoError(t, err)
	_, err = s.Append(ctx, rec(0, core.Expense, "交通", 220))
	require.NoError(t, err)
	require.NoError(t, s.UpdateAt(ctx, 1, rec(0, core.Expense, "\t交通 ", 230)))

	cached, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, "food", cached[0].Category)
	assert.Equal(t, "交通", cached[1].Category)

	stored, err := table.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for i := range stored {
		assert.True(t, stored[i].Equal(cached[i]), "row %d: %s != %s", i, stored[i], cached[i])
	}

	rev := s.Revision()
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, rev, s.Revision(), "reloading what was just written keeps the revision")

	require.NoError(t, s.UpdateMatching(ctx, rec(0, core.Expense, " food ", 500), rec(0, core.Expense, " 食費", 500)))
	require.NoError(t, s.DeleteMatching(ctx, rec(0, core.Expense, "食費 ", 500)))
	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTotalsSeparatesKinds(t *testing.T) {
	totals := Totals([]core.Record{
		rec(0, core.Income, "給与", 250000),
		rec(0, core.Expense, "食費", 1200),
		rec(0, core.Expense, "交通", 800),
	})
	assert.Equal(t, int64(250000), totals.Income)
	assert.Equal(t, int64(2000), totals.Expense)
	assert.Equal(t, int64(248000), totals.Balance())
}

func TestSortedPositions(t *testing.T) {
	assert.Equal(t, []int{0, 2, 5}, SortedPositions([]int{5, 0, 2, 5}))
	assert.Empty(t, SortedPositions(nil))
}
