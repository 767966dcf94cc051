package recurrence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/homeledger/homeledger/internal/ledger"
)

type memoryRepo struct {
	definitions map[int64]Definition
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{definitions: make(map[int64]Definition)}
}

func (m *memoryRepo) List(context.Context) ([]Definition, error) {
	out := make([]Definition, 0, len(m.definitions))
	for _, d := range m.definitions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) ListDue(_ context.Context, now time.Time) ([]Definition, error) {
	var out []Definition
	for _, d := range m.definitions {
		if d.IsActive && !d.NextRun.After(now) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Definition, error) {
	d, ok := m.definitions[id]
	if !ok {
		return Definition{}, ErrDefinitionNotFound
	}
	return d, nil
}

func (m *memoryRepo) Create(_ context.Context, d Definition) (Definition, error) {
	m.nextID++
	d.ID = m.nextID
	m.definitions[d.ID] = d
	return d, nil
}

func (m *memoryRepo) Update(_ context.Context, d Definition) (Definition, error) {
	if _, ok := m.definitions[d.ID]; !ok {
		return Definition{}, ErrDefinitionNotFound
	}
	m.definitions[d.ID] = d
	return d, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.definitions[id]; !ok {
		return ErrDefinitionNotFound
	}
	delete(m.definitions, id)
	return nil
}

func (m *memoryRepo) SetNextRun(_ context.Context, id int64, next time.Time) error {
	d, ok := m.definitions[id]
	if !ok {
		return ErrDefinitionNotFound
	}
	d.NextRun = next
	m.definitions[id] = d
	return nil
}

type stubPoster struct {
	posted []ledger.PostingInput
	fail   bool
}

func (s *stubPoster) Post(_ context.Context, in ledger.PostingInput) (ledger.Transaction, error) {
	if s.fail {
		return ledger.Transaction{}, errors.New("posting rejected")
	}
	s.posted = append(s.posted, in)
	return ledger.Transaction{ID: int64(len(s.posted))}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func definition(freq string, firstRun time.Time) Definition {
	return Definition{
		Name:          "rent",
		FromAccountID: 1,
		ToAccountID:   2,
		Amount:        1200,
		Frequency:     freq,
		FirstRun:      firstRun,
		Nature:        "rent",
		IsActive:      true,
	}
}

func TestCreateSetsNextRun(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &stubPoster{}, testLogger())

	first := day(2024, time.February, 1)
	created, err := svc.Create(context.Background(), definition("monthly", first))
	require.NoError(t, err)
	require.Equal(t, first, created.NextRun)

	_, err = svc.Create(context.Background(), definition("hourly", first))
	require.ErrorIs(t, err, ErrBadFrequency)
}

func TestUpdateRecomputesOverdueNextRun(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &stubPoster{}, testLogger())

	created, err := svc.Create(context.Background(), definition("monthly", day(2024, time.January, 1)))
	require.NoError(t, err)

	now := day(2024, time.March, 10)
	updated, err := svc.Update(context.Background(), created, now)
	require.NoError(t, err)
	require.Equal(t, day(2024, time.April, 1), updated.NextRun)
}

func TestRunDuePostsAtMostRecentOccurrence(t *testing.T) {
	repo := newMemoryRepo()
	poster := &stubPoster{}
	svc := NewService(repo, poster, testLogger())

	created, err := svc.Create(context.Background(), definition("monthly", day(2024, time.January, 1)))
	require.NoError(t, err)

	// Two occurrences were missed; a single posting lands on the latest.
	now := day(2024, time.March, 10)
	posted, err := svc.RunDue(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, posted)
	require.Len(t, poster.posted, 1)
	require.Equal(t, day(2024, time.March, 1), poster.posted[0].Date)
	require.Equal(t, 1200.0, poster.posted[0].Amount)

	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, day(2024, time.April, 1), stored.NextRun)

	// Nothing further is due until the next occurrence.
	posted, err = svc.RunDue(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 0, posted)
	require.Len(t, poster.posted, 1)
}

func TestRunDueSkipsFailingDefinition(t *testing.T) {
	repo := newMemoryRepo()
	poster := &stubPoster{fail: true}
	svc := NewService(repo, poster, testLogger())

	created, err := svc.Create(context.Background(), definition("weekly", day(2024, time.January, 1)))
	require.NoError(t, err)

	posted, err := svc.RunDue(context.Background(), day(2024, time.January, 2))
	require.NoError(t, err)
	require.Equal(t, 0, posted)

	// A failed posting leaves next-run untouched for a retry.
	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, day(2024, time.January, 1), stored.NextRun)
}

func TestRunDueIgnoresInactive(t *testing.T) {
	repo := newMemoryRepo()
	poster := &stubPoster{}
	svc := NewService(repo, poster, testLogger())

	def := definition("daily", day(2024, time.January, 1))
	def.IsActive = false
	_, err := svc.Create(context.Background(), def)
	require.NoError(t, err)

	posted, err := svc.RunDue(context.Background(), day(2024, time.January, 5))
	require.NoError(t, err)
	require.Equal(t, 0, posted)
	require.Empty(t, poster.posted)
}
