// Package cluster groups fingerprinted records into near-duplicate
// clusters.
//
// Candidate pairs come from a BK-tree range query over Hamming distance;
// cluster membership is the connected components of the "distance <=
// threshold" relation, built with union-find. Because components are
// transitive closures, a cluster may contain a pair whose direct
// distance exceeds the threshold when an intermediate image links them.
// That is intentional: perceptual hashes approximate visual similarity
// and make no metric guarantee, so chains of near-duplicates are grouped
// rather than split on an arbitrary edge.
package cluster

import (
	"context"
	"sort"

	"photoclean/internal/hash"
	"photoclean/internal/models"
)

// FindClusters partitions records into clusters of mutual near-duplicates
// under the given Hamming threshold. Records without a fingerprint are
// ignored; records with no near-duplicate are excluded from the output
// (singletons are not clusters). For a fixed input ordering and
// threshold, membership and ordering are reproducible.
//
// Cancelling ctx returns the clusters formed from the records processed
// so far, alongside ctx.Err().
func FindClusters(ctx context.Context, records []*models.ImageRecord, threshold int) ([]*models.Cluster, error) {
	fingerprinted := make([]*models.ImageRecord, 0, len(records))
	for _, r := range records {
		if r.Fingerprint != nil {
			fingerprinted = append(fingerprinted, r)
		}
	}
	if len(fingerprinted) < 2 {
		return nil, ctx.Err()
	}

	uf := newUnionFind(len(fingerprinted))
	tree := newBKTree(hash.Distance)

	var err error
	for i, r := range fingerprinted {
		if err = ctx.Err(); err != nil {
			fingerprinted = fingerprinted[:i]
			break
		}
		for _, j := range tree.findWithinDistance(*r.Fingerprint, threshold) {
			uf.union(i, j)
		}
		tree.insert(*r.Fingerprint, i)
	}

	return collect(fingerprinted, uf), err
}

// collect turns union-find components into ordered clusters.
func collect(records []*models.ImageRecord, uf *unionFind) []*models.Cluster {
	components := make(map[int][]*models.ImageRecord)
	for i, r := range records {
		root := uf.find(i)
		components[root] = append(components[root], r)
	}

	var clusters []*models.Cluster
	for _, members := range components {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].Path < members[j].Path
		})
		clusters = append(clusters, &models.Cluster{Records: members})
	}

	// Order clusters by their first member so IDs are stable across runs.
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].Records[0].Path < clusters[j].Records[0].Path
	})
	for i, c := range clusters {
		c.ID = i + 1
	}
	return clusters
}

// unionFind tracks connected components with path compression and
// union by rank.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	rank := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent, rank: rank}
}

func (uf *unionFind) find(x int) int {
	if uf.parent[x] != x {
		uf.parent[x] = uf.find(uf.parent[x])
	}
	return uf.parent[x]
}

func (uf *unionFind) union(x, y int) {
	px, py := uf.find(x), uf.find(y)
	if px == py {
		return
	}
	if uf.rank[px] < uf.rank[py] {
		px, py = py, px
	}
	uf.parent[py] = px
	if uf.rank[px] == uf.rank[py] {
		uf.rank[px]++
	}
}
