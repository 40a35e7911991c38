package eventlogger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *SQLStore {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB(db) })
	return NewSQLStore(db)
}

func testStores(t *testing.T) map[string]EventStore {
	return map[string]EventStore{
		"memory": NewMemoryStore(),
		"sqlite": openTestDB(t),
	}
}

func TestEventStore_InsertRetrieveUpdate(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ev := sampleEvent(EventTypeWarning, "500", "Network Error")
			ev.Info = map[string]string{"screen": "login"}

			_, ok, err := store.Retrieve("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.InsertOrUpdate("k1", ev))
			got, ok, err := store.Retrieve("k1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, ev, got)

			ev.OccurrenceCount = 5
			ev.EventType = EventTypeCritical
			require.NoError(t, store.InsertOrUpdate("k1", ev))
			got, _, err = store.Retrieve("k1")
			require.NoError(t, err)
			assert.Equal(t, 5, got.OccurrenceCount)
			assert.Equal(t, EventTypeCritical, got.EventType)

			count, err := store.Count()
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestEventStore_GetAllAndDeleteAll(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			a := sampleEvent(EventTypeWarning, "404", "Not Found")
			b := sampleEvent(EventTypeCritical, "500", "Network Error")
			require.NoError(t, store.InsertOrUpdate(a.Fingerprint(), a))
			require.NoError(t, store.InsertOrUpdate(b.Fingerprint(), b))

			all, err := store.GetAllEvents()
			require.NoError(t, err)
			assert.Equal(t, map[string]Event{a.Fingerprint(): a, b.Fingerprint(): b}, all)

			require.NoError(t, store.DeleteAll())
			count, err := store.Count()
			require.NoError(t, err)
			assert.Equal(t, 0, count)

			require.NoError(t, store.DeleteAll(), "deleting an empty store is fine")
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ev := sampleEvent(EventTypeWarning, "404", "Not Found")
	ev.Info = map[string]string{"k": "v"}
	require.NoError(t, s.InsertOrUpdate("k", ev))

	ev.Info["k"] = "mutated"
	got, _, _ := s.Retrieve("k")
	assert.Equal(t, "v", got.Info["k"])

	got.Info["k"] = "mutated"
	again, _, _ := s.Retrieve("k")
	assert.Equal(t, "v", again.Info["k"])
}

func TestSQLStore_Closed(t *testing.T) {
	s := openTestDB(t)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.InsertOrUpdate("k", Event{}), ErrStoreClosed)
	_, _, err := s.Retrieve("k")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = s.Count()
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = s.GetAllEvents()
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, s.DeleteAll(), ErrStoreClosed)
}

func TestSQLStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	ev := sampleEvent(EventTypeWarning, "404", "Not Found")
	require.NoError(t, NewSQLStore(db).InsertOrUpdate("k", ev))
	require.NoError(t, CloseDB(db))

	db, err = OpenDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB(db) })
	got, ok, err := NewSQLStore(db).Retrieve("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ev, got)
}

func TestTTLCache(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB(db) })

	caches := map[string]TTLCache{
		"memory": NewMemoryCache(),
		"sqlite": NewSQLCache(db),
	}
	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			ref, err := c.ReferenceTime()
			require.NoError(t, err)
			assert.True(t, ref.IsZero())

			first := time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC)
			require.NoError(t, c.SetReferenceTime(first))
			ref, err = c.ReferenceTime()
			require.NoError(t, err)
			assert.True(t, ref.Equal(first))

			second := first.Add(time.Hour)
			require.NoError(t, c.SetReferenceTime(second))
			ref, err = c.ReferenceTime()
			require.NoError(t, err)
			assert.True(t, ref.Equal(second))
		})
	}
}
