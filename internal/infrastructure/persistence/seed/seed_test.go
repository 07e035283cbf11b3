package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/infrastructure/persistence/seed"
	"github.com/rezkam/housekeeping/internal/infrastructure/persistence/sqlite"
	"github.com/rezkam/housekeeping/internal/ptr"
)

const catalogJSON = `{
  "rooms": [
    {"id": "101", "name": "Room 101", "group": "floor 1", "color": "#336699"},
    {"id": "201", "name": "Suite 201", "group": "suite", "color": "#993366"}
  ],
  "staff": [{"id": "maria", "name": "Maria"}],
  "time_limits": [
    {"cleaning_type": "departure", "minutes": 30},
    {"cleaning_type": "departure", "guest_capacity_id": "4p", "minutes": 45}
  ]
}`

func TestParse(t *testing.T) {
	c, err := seed.Parse(strings.NewReader(catalogJSON))
	require.NoError(t, err)

	require.Len(t, c.Rooms, 2)
	assert.Equal(t, domain.Room{ID: "201", Name: "Suite 201", Group: "suite", Color: "#993366"}, c.Rooms[1])
	assert.Equal(t, []domain.Staff{{ID: "maria", Name: "Maria"}}, c.Staff)
	assert.Equal(t, ptr.To("4p"), c.TimeLimits[1].GuestCapacityID)
}

const catalogYAML = `
rooms:
  - id: "101"
    name: Room 101
    group: floor 1
staff:
  - id: maria
    name: Maria
time_limits:
  - cleaning_type: departure
    guest_capacity_id: 4p
    minutes: 45
`

func TestParseYAML(t *testing.T) {
	c, err := seed.ParseYAML(strings.NewReader(catalogYAML))
	require.NoError(t, err)

	assert.Equal(t, []domain.Room{{ID: "101", Name: "Room 101", Group: "floor 1"}}, c.Rooms)
	assert.Equal(t, []domain.Staff{{ID: "maria", Name: "Maria"}}, c.Staff)
	require.Len(t, c.TimeLimits, 1)
	assert.Equal(t, 45, c.TimeLimits[0].Minutes)
	assert.Equal(t, ptr.To("4p"), c.TimeLimits[0].GuestCapacityID)
}

func TestParseYAMLRejects(t *testing.T) {
	_, err := seed.ParseYAML(strings.NewReader("hotels: []\n"))
	assert.Error(t, err, "unknown keys are rejected as in JSON")

	_, err = seed.ParseYAML(strings.NewReader("rooms: [\n"))
	assert.Error(t, err)
}

func TestParseYAMLEmpty(t *testing.T) {
	c, err := seed.ParseYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, c.Rooms)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `{"rooms": [`},
		{"unknown key", `{"hotels": []}`},
		{"room without id", `{"rooms": [{"name": "x"}]}`},
		{"duplicate room", `{"rooms": [{"id": "1"}, {"id": "1"}]}`},
		{"staff without id", `{"staff": [{"name": "x"}]}`},
		{"limit without type", `{"time_limits": [{"minutes": 10}]}`},
		{"non-positive limit", `{"time_limits": [{"cleaning_type": "a", "minutes": 0}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seed.Parse(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON), 0o600))

	store, err := sqlite.NewStoreWithConfig(ctx, sqlite.DBConfig{DSN: sqlite.MemoryDSN})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, seed.Apply(ctx, store, path))
	require.NoError(t, seed.Apply(ctx, store, path))

	rooms, err := store.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	limit, err := store.TimeLimit(ctx, "departure", ptr.To("4p"))
	require.NoError(t, err)
	assert.Equal(t, ptr.To(45), limit)
}

func TestApplyYAMLByExtension(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

	store, err := sqlite.NewStoreWithConfig(ctx, sqlite.DBConfig{DSN: sqlite.MemoryDSN})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, seed.Apply(ctx, store, path))

	staff, err := store.ListStaff(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Staff{{ID: "maria", Name: "Maria"}}, staff)
}

func TestApplyEmptyPath(t *testing.T) {
	assert.NoError(t, seed.Apply(context.Background(), nil, ""))
}

func TestApplyMissingFile(t *testing.T) {
	err := seed.Apply(context.Background(), nil, filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
