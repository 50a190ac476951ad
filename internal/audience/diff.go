package audience

import "sort"

// Diff compares two audiences by email. Additions are the members of next
// missing from current; removals are the emails of current missing from
// next, sorted. A member whose user id changed but whose email did not is
// neither.
func Diff(next, current Audience) (Audience, []string) {
	additions := make(Audience)
	for email, uid := range next {
		if _, ok := current[email]; !ok {
			additions[email] = uid
		}
	}
	removals := make([]string, 0)
	for email := range current {
		if _, ok := next[email]; !ok {
			removals = append(removals, email)
		}
	}
	sort.Strings(removals)
	return additions, removals
}
