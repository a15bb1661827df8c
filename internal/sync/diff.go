// Package sync reconciles directory state with the license portal: it
// computes entity diffs, applies them in failure-isolated batches, and runs
// the full user/group/membership pass.
package sync

import "sort"

// Result partitions a local/remote comparison into the mutations that bring
// the remote side in line with local state. Every local entity lands in
// exactly one of ToCreate or ToUpdate; ToDelete holds remote IDs with no
// local counterpart. All three slices are sorted ascending by ID.
type Result[L any] struct {
	ToCreate []L
	ToUpdate []L
	ToDelete []string
}

// Compute compares local entities against remote records by ID. A remote
// record flagged deleted counts as absent, so a local entity with the same ID
// is recreated rather than updated. Entities present on both sides are always
// updates; no field-level comparison is attempted, the portal is free to
// no-op identical payloads.
func Compute[L, R any](
	local []L,
	remote []R,
	localID func(L) string,
	remoteID func(R) string,
	remoteDeleted func(R) bool,
) Result[L] {
	remoteLive := make(map[string]struct{}, len(remote))
	for _, r := range remote {
		if remoteDeleted(r) {
			continue
		}
		remoteLive[remoteID(r)] = struct{}{}
	}

	var result Result[L]
	localIDs := make(map[string]struct{}, len(local))
	for _, l := range local {
		id := localID(l)
		localIDs[id] = struct{}{}
		if _, ok := remoteLive[id]; ok {
			result.ToUpdate = append(result.ToUpdate, l)
		} else {
			result.ToCreate = append(result.ToCreate, l)
		}
	}

	for id := range remoteLive {
		if _, ok := localIDs[id]; !ok {
			result.ToDelete = append(result.ToDelete, id)
		}
	}

	sort.Slice(result.ToCreate, func(i, j int) bool {
		return localID(result.ToCreate[i]) < localID(result.ToCreate[j])
	})
	sort.Slice(result.ToUpdate, func(i, j int) bool {
		return localID(result.ToUpdate[i]) < localID(result.ToUpdate[j])
	})
	sort.Strings(result.ToDelete)

	return result
}

// DiffMembers compares local and remote membership ID sets, returning the IDs
// to add to and remove from the remote group. Both slices come back sorted.
func DiffMembers(local, remote []string) (toAdd, toRemove []string) {
	remoteSet := make(map[string]struct{}, len(remote))
	for _, id := range remote {
		remoteSet[id] = struct{}{}
	}
	localSet := make(map[string]struct{}, len(local))
	for _, id := range local {
		localSet[id] = struct{}{}
		if _, ok := remoteSet[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for _, id := range remote {
		if _, ok := localSet[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}
