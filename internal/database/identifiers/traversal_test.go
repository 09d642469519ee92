package identifiers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlibris/circulate/internal/entities"
)

// chainFixture creates identifiers A, B, C, D with the edges
// A-B (0.9), B-C (0.5), B-D (0.2).
func chainFixture(t *testing.T, repo *Repository, source *entities.DataSource) (a, b, c, d *entities.Identifier) {
	t.Helper()
	ids := make([]*entities.Identifier, 4)
	for i, name := range []string{"a", "b", "c", "d"} {
		identifier, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, "isbn-"+name, true)
		require.NoError(t, err)
		ids[i] = identifier
	}
	a, b, c, d = ids[0], ids[1], ids[2], ids[3]

	_, err := repo.EquivalentTo(a, b, source, 0.9)
	require.NoError(t, err)
	_, err = repo.EquivalentTo(b, c, source, 0.5)
	require.NoError(t, err)
	_, err = repo.EquivalentTo(b, d, source, 0.2)
	require.NoError(t, err)
	return a, b, c, d
}

func closureOf(t *testing.T, repo *Repository, seed uint, policy TraversalPolicy) []uint {
	t.Helper()
	closures, err := repo.RecursivelyEquivalentIdentifierIDs([]uint{seed}, policy)
	require.NoError(t, err)
	return closures[seed]
}

func TestTraversal_OneLevel(t *testing.T) {
	repo, source, cleanup := setupTestDB(t)
	defer cleanup()
	a, b, c, d := chainFixture(t, repo, source)

	policy := TraversalPolicy{Levels: 1, Threshold: 0.1}

	assert.Equal(t, []uint{a.ID, b.ID}, closureOf(t, repo, a.ID, policy))
	assert.Equal(t, []uint{a.ID, b.ID, c.ID, d.ID}, closureOf(t, repo, b.ID, policy))
}

func TestTraversal_DeepLowThreshold(t *testing.T) {
	repo, source, cleanup := setupTestDB(t)
	defer cleanup()
	a, b, c, d := chainFixture(t, repo, source)

	policy := TraversalPolicy{Levels: 5, Threshold: 0.1}

	// A reaches C at 0.9*0.5 = 0.45 and D at 0.9*0.2 = 0.18, both above
	// the threshold.
	assert.Equal(t, []uint{a.ID, b.ID, c.ID, d.ID}, closureOf(t, repo, a.ID, policy))
}

func TestTraversal_DeepHighThreshold(t *testing.T) {
	repo, source, cleanup := setupTestDB(t)
	defer cleanup()
	a, b, _, _ := chainFixture(t, repo, source)

	// Confidence compounds: the 0.45 path to C falls below 0.5 even though
	// every individual edge on it is above.
	policy := TraversalPolicy{Levels: 5, Threshold: 0.5}
	assert.Equal(t, []uint{a.ID, b.ID}, closureOf(t, repo, a.ID, policy))
}

func TestTraversal_EdgesAreSymmetric(t *testing.T) {
	repo, source, cleanup := setupTestDB(t)
	defer cleanup()
	a, b, _, _ := chainFixture(t, repo, source)

	// A-B was recorded as A -> B; traversal from B still crosses it.
	policy := TraversalPolicy{Levels: 1, Threshold: 0.1}
	assert.Contains(t, closureOf(t, repo, b.ID, policy), a.ID)
}

func TestTraversal_StrongestChainWins(t *testing.T) {
	repo, source, cleanup := setupTestDB(t)
	defer cleanup()

	a, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, "isbn-a", true)
	require.NoError(t, err)
	b, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, "isbn-b", true)
	require.NoError(t, err)
	c, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, "isbn-c", true)
	require.NoError(t, err)

	// Two chains reach C from A: directly at 0.5, through B at 0.81.
	_, err = repo.EquivalentTo(a, b, source, 0.9)
	require.NoError(t, err)
	_, err = repo.EquivalentTo(b, c, source, 0.9)
	require.NoError(t, err)
	_, err = repo.EquivalentTo(a, c, source, 0.5)
	require.NoError(t, err)

	pairs, err := repo.RecursivelyEquivalentPairs([]uint{a.ID}, TraversalPolicy{Levels: 5, Threshold: 0.1})
	require.NoError(t, err)

	strengths := make(map[uint]float64)
	for _, pair := range pairs {
		strengths[pair.IdentifierID] = pair.Strength
	}
	assert.InDelta(t, 0.81, strengths[c.ID], 1e-9)
}

func TestTraversal_DisabledEdgesIgnored(t *testing.T) {
	repo, source, cleanup := setupTestDB(t)
	defer cleanup()

	a, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, "isbn-a", true)
	require.NoError(t, err)
	b, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, "isbn-b", true)
	require.NoError(t, err)

	ab, err := repo.EquivalentTo(a, b, source, 1)
	require.NoError(t, err)
	require.NoError(t, repo.SetEquivalencyEnabled(ab.ID, false))

	policy := TraversalPolicy{Levels: 5, Threshold: 0.1}
	assert.Equal(t, []uint{a.ID}, closureOf(t, repo, a.ID, policy))
}

func TestTraversal_NonPositiveEdgesIgnored(t *testing.T) {
	repo, source, cleanup := setupTestDB(t)
	defer cleanup()

	a, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, "isbn-a", true)
	require.NoError(t, err)
	b, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, "isbn-b", true)
	require.NoError(t, err)

	// A non-equivalence assertion never joins a chain.
	_, err = repo.EquivalentTo(a, b, source, -0.8)
	require.NoError(t, err)

	policy := TraversalPolicy{Levels: 5, Threshold: 0.1}
	assert.Equal(t, []uint{a.ID}, closureOf(t, repo, a.ID, policy))
}

func TestTraversal_CutoffNeverTruncatesFirstLevel(t *testing.T) {
	repo, source, cleanup := setupTestDB(t)
	defer cleanup()

	hub, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, "isbn-hub", true)
	require.NoError(t, err)

	var neighbors []*entities.Identifier
	for i := 0; i < 5; i++ {
		neighbor, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, fmt.Sprintf("isbn-n%d", i), true)
		require.NoError(t, err)
		_, err = repo.EquivalentTo(hub, neighbor, source, 1)
		require.NoError(t, err)
		neighbors = append(neighbors, neighbor)
	}
	// One node two hops out, reachable only through the first neighbor.
	far, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, "isbn-far", true)
	require.NoError(t, err)
	_, err = repo.EquivalentTo(neighbors[0], far, source, 1)
	require.NoError(t, err)

	// Cutoff 2 with 5 direct neighbors: the first level completes in full,
	// then expansion stops before the second.
	closure := closureOf(t, repo, hub.ID, TraversalPolicy{Levels: 5, Threshold: 0.1, Cutoff: 2})
	assert.Len(t, closure, 6)
	assert.Contains(t, closure, hub.ID)
	for _, neighbor := range neighbors {
		assert.Contains(t, closure, neighbor.ID)
	}
	assert.NotContains(t, closure, far.ID)
}

func TestTraversal_SeedsAreIndependent(t *testing.T) {
	repo, source, cleanup := setupTestDB(t)
	defer cleanup()
	a, b, c, d := chainFixture(t, repo, source)

	closures, err := repo.RecursivelyEquivalentIdentifierIDs(
		[]uint{a.ID, b.ID},
		TraversalPolicy{Levels: 1, Threshold: 0.1},
	)
	require.NoError(t, err)

	// B reaches C and D at level one; A does not, even though both seeds
	// walked in the same batch.
	assert.Equal(t, []uint{a.ID, b.ID}, closures[a.ID])
	assert.Equal(t, []uint{a.ID, b.ID, c.ID, d.ID}, closures[b.ID])
}

func TestTraversal_PairsIncludeSelf(t *testing.T) {
	repo, source, cleanup := setupTestDB(t)
	defer cleanup()
	a, b, _, _ := chainFixture(t, repo, source)

	pairs, err := repo.RecursivelyEquivalentPairs([]uint{a.ID}, TraversalPolicy{Levels: 1, Threshold: 0.1})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, EquivalentPair{ParentID: a.ID, IdentifierID: a.ID, Strength: 1}, pairs[0])
	assert.Equal(t, a.ID, pairs[1].ParentID)
	assert.Equal(t, b.ID, pairs[1].IdentifierID)
}
