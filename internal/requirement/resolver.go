// Package requirement decides which server-declared obligation to work on
// next. The server-supplied order is authoritative: the resolver never
// reorders entries and never advances locally after a satisfying event,
// because satisfying one requirement can retroactively satisfy or newly
// introduce others. Callers must refetch the list after every mutation.
package requirement

import "veriflow/pkg/domain"

// Next returns the first outstanding requirement in server order. The second
// return is false when nothing is outstanding, which for a non-empty fetch
// means the session is fully satisfied and for an empty list means it was
// already verified at entry.
func Next(reqs []domain.Requirement) (domain.Requirement, bool) {
	for _, r := range reqs {
		if r.Outstanding() {
			return r, true
		}
	}
	return domain.Requirement{}, false
}

// Satisfied reports whether no outstanding requirement remains.
func Satisfied(reqs []domain.Requirement) bool {
	_, ok := Next(reqs)
	return !ok
}

// Outstanding counts the remaining obligations, for progress display.
func Outstanding(reqs []domain.Requirement) int {
	n := 0
	for _, r := range reqs {
		if r.Outstanding() {
			n++
		}
	}
	return n
}
