package database

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openlibris/circulate/internal/entities"
)

// setupTestDB creates a fresh test database
func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()
	dbPath := "./test_" + t.Name() + ".db"
	db, err := NewDatabase(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return db, cleanup
}

func TestDatabaseInitialization(t *testing.T) {
	t.Run("NewDatabase creates database file", func(t *testing.T) {
		dbPath := "./init_test.db"
		defer os.Remove(dbPath)

		db, err := NewDatabase(dbPath)
		require.NoError(t, err)
		defer db.Close()

		_, err = os.Stat(dbPath)
		assert.NoError(t, err)
	})

	t.Run("NewDatabase seeds data sources on creation", func(t *testing.T) {
		dbPath := "./seed_test.db"
		defer os.Remove(dbPath)

		db, err := NewDatabase(dbPath)
		require.NoError(t, err)
		defer db.Close()

		sources, err := db.GetAllDataSources()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(sources), len(defaultDataSources))
	})

	t.Run("NewDatabase is idempotent for data sources", func(t *testing.T) {
		dbPath := "./idempotent_test.db"
		defer os.Remove(dbPath)

		db1, err := NewDatabase(dbPath)
		require.NoError(t, err)
		sources1, _ := db1.GetAllDataSources()
		db1.Close()

		// Reopen - should not duplicate sources
		db2, err := NewDatabase(dbPath)
		require.NoError(t, err)
		defer db2.Close()

		sources2, err := db2.GetAllDataSources()
		require.NoError(t, err)
		assert.Equal(t, len(sources1), len(sources2))
	})
}

func TestDataSourceOperations(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	t.Run("GetDataSourceByName returns seeded source", func(t *testing.T) {
		source, err := db.GetDataSourceByName(entities.DataSourceOverdrive)
		require.NoError(t, err)
		assert.Equal(t, entities.DataSourceOverdrive, source.Name)
		assert.Equal(t, "OverDrive", source.DisplayName)
	})

	t.Run("GetDataSourceByName returns error for unknown source", func(t *testing.T) {
		_, err := db.GetDataSourceByName("unknown_source")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("GetAllDataSources returns all seeded sources", func(t *testing.T) {
		sources, err := db.GetAllDataSources()
		require.NoError(t, err)

		expectedNames := []string{
			entities.DataSourceOverdrive,
			entities.DataSourceBibliotheca,
			entities.DataSourceBoundless,
			entities.DataSourceOCLC,
		}
		sourceNames := make(map[string]bool)
		for _, s := range sources {
			sourceNames[s.Name] = true
		}
		for _, name := range expectedNames {
			assert.True(t, sourceNames[name], "Expected data source %s not found", name)
		}
	})
}

func TestForeignKeysEnforced(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	// An equivalency pointing at identifiers that do not exist must be
	// rejected; the cascade semantics depend on the pragma being on.
	source, err := db.GetDataSourceByName(entities.DataSourceOverdrive)
	require.NoError(t, err)

	err = db.DB.Create(&entities.Equivalency{
		InputID:      9998,
		OutputID:     9999,
		DataSourceID: source.ID,
		Strength:     1,
		Votes:        1,
		Enabled:      true,
	}).Error
	assert.Error(t, err)
}
