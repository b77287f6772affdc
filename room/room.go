// Package room maps message targets to canonical room ids.
package room

// Separator joins the two participant ids of a direct room. User ids are
// uuids, which never contain '_', so a direct room id can always be split
// back into its participants.
const Separator = "_"

// Resolve returns the canonical room id for a target. Group rooms own a
// single fixed id for their lifetime; direct rooms derive theirs from the
// unordered pair of participant ids, so both sides resolve to the same room.
func Resolve(target string, isGroup bool, requester string) string {
	if isGroup {
		return target
	}
	if requester < target {
		return requester + Separator + target
	}
	return target + Separator + requester
}
