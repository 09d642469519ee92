package identifiers

import (
	"sort"

	"github.com/openlibris/circulate/internal/entities"
)

// TraversalPolicy bounds the recursive equivalence traversal.
type TraversalPolicy struct {
	// Levels is the maximum hop count outward from a seed. The default is
	// enough to reach from a vendor ID to an ISBN.
	Levels int
	// Threshold is the minimum product of edge strengths along a path for
	// the reached identifier to be accepted.
	Threshold float64
	// Cutoff is a soft limit on the per-seed result set size. The traversal
	// always completes the current level before considering it and never
	// stops before one full level.
	Cutoff int
}

// DefaultTraversalPolicy returns the production policy.
func DefaultTraversalPolicy() TraversalPolicy {
	return TraversalPolicy{Levels: 5, Threshold: 0.5, Cutoff: 1000}
}

// EquivalentPair is one flattened closure row: identifier IdentifierID is
// equivalent to ParentID with the given best path strength.
type EquivalentPair struct {
	ParentID     uint
	IdentifierID uint
	Strength     float64
}

// inChunkSize keeps IN(...) lists under SQLite's bound-variable limit.
const inChunkSize = 500

type traversalEdge struct {
	InputID  uint
	OutputID uint
	Strength float64
}

// RecursivelyEquivalentIdentifierIDs runs the closure traversal for each
// seed and returns, per seed, every identifier reachable within the policy
// bounds. Seeds are processed in one batched walk (one edge query per
// level), but each seed's thresholding and cutoff are independent.
//
// Traversal is breadth-first and follows edges in both directions, since
// equivalence is semantically symmetric even though edges are directed.
// Path strength is the product of traversed edge strengths; confidence
// compounds down a chain. Expansion from a node is pruned once accumulated
// strength falls below the threshold, and when several chains reach the
// same identifier the strongest one decides. Disabled edges and edges with
// non-positive strength never join a chain.
func (r *Repository) RecursivelyEquivalentIdentifierIDs(seeds []uint, policy TraversalPolicy) (map[uint][]uint, error) {
	best, err := r.recursivelyEquivalent(seeds, policy)
	if err != nil {
		return nil, err
	}
	out := make(map[uint][]uint, len(best))
	for seed, members := range best {
		ids := make([]uint, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out[seed] = ids
	}
	return out, nil
}

// RecursivelyEquivalentPairs is the flattened form, producing one
// (parent, identifier, strength) row per closure membership across all
// seeds. This is the shape the coverage provider persists.
func (r *Repository) RecursivelyEquivalentPairs(seeds []uint, policy TraversalPolicy) ([]EquivalentPair, error) {
	best, err := r.recursivelyEquivalent(seeds, policy)
	if err != nil {
		return nil, err
	}
	var pairs []EquivalentPair
	for seed, members := range best {
		ids := make([]uint, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			pairs = append(pairs, EquivalentPair{ParentID: seed, IdentifierID: id, Strength: members[id]})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ParentID != pairs[j].ParentID {
			return pairs[i].ParentID < pairs[j].ParentID
		}
		return pairs[i].IdentifierID < pairs[j].IdentifierID
	})
	return pairs, nil
}

func (r *Repository) recursivelyEquivalent(seeds []uint, policy TraversalPolicy) (map[uint]map[uint]float64, error) {
	if policy.Levels <= 0 {
		policy.Levels = DefaultTraversalPolicy().Levels
	}

	best := make(map[uint]map[uint]float64, len(seeds))
	frontier := make(map[uint]map[uint]float64, len(seeds))
	active := make(map[uint]bool, len(seeds))
	for _, seed := range seeds {
		best[seed] = map[uint]float64{seed: 1}
		frontier[seed] = map[uint]float64{seed: 1}
		active[seed] = true
	}

	for level := 0; level < policy.Levels; level++ {
		expand := make(map[uint]struct{})
		for seed, nodes := range frontier {
			if !active[seed] {
				continue
			}
			for id := range nodes {
				expand[id] = struct{}{}
			}
		}
		if len(expand) == 0 {
			break
		}

		adjacency, err := r.incidentEdges(expand)
		if err != nil {
			return nil, err
		}

		anyActive := false
		for seed := range best {
			if !active[seed] {
				continue
			}
			next := make(map[uint]float64)
			for node, strength := range frontier[seed] {
				for _, edge := range adjacency[node] {
					reached := edge.neighbor
					combined := strength * edge.strength
					if combined < policy.Threshold {
						continue
					}
					if current, seen := best[seed][reached]; !seen || combined > current {
						best[seed][reached] = combined
						if prev, ok := next[reached]; !ok || combined > prev {
							next[reached] = combined
						}
					}
				}
			}
			frontier[seed] = next
			switch {
			case len(next) == 0:
				active[seed] = false
			case policy.Cutoff > 0 && len(best[seed]) >= policy.Cutoff:
				// Soft limit reached; this level completed in full, no
				// deeper expansion for this seed.
				active[seed] = false
			default:
				anyActive = true
			}
		}
		if !anyActive {
			break
		}
	}

	return best, nil
}

type halfEdge struct {
	neighbor uint
	strength float64
}

// incidentEdges loads, in chunked batched queries, every enabled
// positive-strength edge touching the given frontier and returns it as an
// undirected adjacency list.
func (r *Repository) incidentEdges(frontier map[uint]struct{}) (map[uint][]halfEdge, error) {
	ids := make([]uint, 0, len(frontier))
	for id := range frontier {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	adjacency := make(map[uint][]halfEdge)
	seen := make(map[[2]uint]float64)
	for _, chunk := range chunkIDs(ids, inChunkSize) {
		var edges []traversalEdge
		err := r.db.Model(&entities.Equivalency{}).
			Select("input_id", "output_id", "strength").
			Where("enabled = ?", true).
			Where("strength > 0").
			Where("input_id IN ? OR output_id IN ?", chunk, chunk).
			Find(&edges).Error
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			key := [2]uint{edge.InputID, edge.OutputID}
			if existing, ok := seen[key]; ok && existing >= edge.Strength {
				continue
			}
			seen[key] = edge.Strength
		}
	}
	for key, strength := range seen {
		input, output := key[0], key[1]
		adjacency[input] = append(adjacency[input], halfEdge{neighbor: output, strength: strength})
		adjacency[output] = append(adjacency[output], halfEdge{neighbor: input, strength: strength})
	}
	return adjacency, nil
}

func chunkIDs(ids []uint, size int) [][]uint {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	var chunks [][]uint
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
