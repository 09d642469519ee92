package equivalents

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openlibris/circulate/internal/database/identifiers"
	"github.com/openlibris/circulate/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, *identifiers.Repository, *entities.DataSource, func()) {
	dbPath := "./test_equivalents_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&entities.DataSource{},
		&entities.Identifier{},
		&entities.Equivalency{},
		&entities.RecursiveEquivalency{},
		&entities.EquivalencyCoverageRecord{},
	)
	require.NoError(t, err)

	source := &entities.DataSource{Name: entities.DataSourceOCLC, DisplayName: "OCLC Linked Data"}
	require.NoError(t, db.Create(source).Error)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return NewRepository(db), identifiers.NewRepository(db), source, cleanup
}

func TestRepository_SelfRowOnCreate(t *testing.T) {
	repo, graph, _, cleanup := setupTestDB(t)
	defer cleanup()

	identifier, _, err := graph.ForForeignID(entities.IdentifierTypeISBN, "9781449358068", true)
	require.NoError(t, err)

	// An identifier's closure contains at least itself from the moment the
	// row exists, before any equivalency is recorded.
	ids, err := repo.EquivalentIDs(identifier.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{identifier.ID}, ids)

	entries, err := repo.Entries(identifier.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsParent)
}

func TestRepository_RebuildFor(t *testing.T) {
	repo, graph, source, cleanup := setupTestDB(t)
	defer cleanup()

	a, _, err := graph.ForForeignID(entities.IdentifierTypeISBN, "isbn-a", true)
	require.NoError(t, err)
	b, _, err := graph.ForForeignID(entities.IdentifierTypeISBN, "isbn-b", true)
	require.NoError(t, err)
	c, _, err := graph.ForForeignID(entities.IdentifierTypeISBN, "isbn-c", true)
	require.NoError(t, err)
	_, err = graph.EquivalentTo(a, b, source, 1)
	require.NoError(t, err)
	_, err = graph.EquivalentTo(b, c, source, 1)
	require.NoError(t, err)

	policy := identifiers.TraversalPolicy{Levels: 5, Threshold: 0.1}
	require.NoError(t, repo.RebuildFor(a.ID, policy))

	ids, err := repo.EquivalentIDs(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID, c.ID}, ids)
}

func TestRepository_RebuildFor_FullReplace(t *testing.T) {
	repo, graph, source, cleanup := setupTestDB(t)
	defer cleanup()

	a, _, err := graph.ForForeignID(entities.IdentifierTypeISBN, "isbn-a", true)
	require.NoError(t, err)
	b, _, err := graph.ForForeignID(entities.IdentifierTypeISBN, "isbn-b", true)
	require.NoError(t, err)

	ab, err := graph.EquivalentTo(a, b, source, 1)
	require.NoError(t, err)

	policy := identifiers.TraversalPolicy{Levels: 5, Threshold: 0.1}
	require.NoError(t, repo.RebuildFor(a.ID, policy))

	ids, err := repo.EquivalentIDs(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID}, ids)

	// After the edge goes away a rebuild drops B from the closure instead
	// of accumulating stale rows.
	require.NoError(t, graph.DeleteEquivalency(ab.ID))
	require.NoError(t, repo.RebuildFor(a.ID, policy))

	ids, err = repo.EquivalentIDs(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID}, ids)
}

func TestRepository_ParentsOf(t *testing.T) {
	repo, graph, source, cleanup := setupTestDB(t)
	defer cleanup()

	a, _, err := graph.ForForeignID(entities.IdentifierTypeISBN, "isbn-a", true)
	require.NoError(t, err)
	b, _, err := graph.ForForeignID(entities.IdentifierTypeISBN, "isbn-b", true)
	require.NoError(t, err)
	c, _, err := graph.ForForeignID(entities.IdentifierTypeISBN, "isbn-c", true)
	require.NoError(t, err)
	_, err = graph.EquivalentTo(a, b, source, 1)
	require.NoError(t, err)

	policy := identifiers.TraversalPolicy{Levels: 5, Threshold: 0.1}
	require.NoError(t, repo.RebuildFor(a.ID, policy))
	require.NoError(t, repo.RebuildFor(b.ID, policy))

	// A and B each cache the other; C only appears in its own self row.
	parents, err := repo.ParentsOf([]uint{b.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID}, parents)

	parents, err = repo.ParentsOf([]uint{c.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{c.ID}, parents)
}

func TestRepository_DeleteIdentifierCascades(t *testing.T) {
	repo, graph, source, cleanup := setupTestDB(t)
	defer cleanup()

	a, _, err := graph.ForForeignID(entities.IdentifierTypeISBN, "isbn-a", true)
	require.NoError(t, err)
	b, _, err := graph.ForForeignID(entities.IdentifierTypeISBN, "isbn-b", true)
	require.NoError(t, err)
	_, err = graph.EquivalentTo(a, b, source, 1)
	require.NoError(t, err)

	policy := identifiers.TraversalPolicy{Levels: 5, Threshold: 0.1}
	require.NoError(t, repo.RebuildFor(a.ID, policy))
	require.NoError(t, repo.RebuildFor(b.ID, policy))

	require.NoError(t, graph.Delete(a))

	// Edges and closure rows referencing A go with it.
	var edgeCount int64
	require.NoError(t, repo.db.Model(&entities.Equivalency{}).Count(&edgeCount).Error)
	assert.Zero(t, edgeCount)

	ids, err := repo.EquivalentIDs(a.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// B keeps only its self row; the membership row pointing at A cascaded.
	ids, err = repo.EquivalentIDs(b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, ids)
}
