package task

import "github.com/google/uuid"

// Diff compares two workflow memberships. added holds ids only in incoming,
// in incoming order; removed holds ids only in original, in original order.
func Diff(original, incoming []uuid.UUID) (added, removed []uuid.UUID) {
	orig := make(map[uuid.UUID]struct{}, len(original))
	for _, id := range original {
		orig[id] = struct{}{}
	}
	in := make(map[uuid.UUID]struct{}, len(incoming))
	for _, id := range incoming {
		in[id] = struct{}{}
	}

	for _, id := range dedupe(incoming) {
		if _, ok := orig[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range dedupe(original) {
		if _, ok := in[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// dedupe drops repeated ids keeping the first occurrence
func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
