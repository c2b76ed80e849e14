// Package overlap detects groups of overlapping appointments and applies the
// deterministic resolution policy that decides which appointment survives.
package overlap

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"daybook/internal/appointment"
)

// Group is one connected overlap component: a maximal set of appointments
// whose intervals overlap pairwise or transitively.
type Group struct {
	// ID is derived from the sorted member ids, so the same source data
	// always yields the same group id across runs.
	ID string

	// Members holds the appointment ids of the component, sorted.
	Members []string
}

// Detect builds the connected overlap components of a day's appointments.
//
// Free appointments are excluded from the overlap graph entirely; they are
// never conflict candidates. Appointments with no overlap are not returned:
// only groups of size two or more need resolution. Three-or-more-way overlaps
// land in a single group even when the outer pair does not itself overlap.
func Detect(appts []appointment.Appointment) []Group {
	candidates := make([]appointment.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.ShowAs == appointment.ShowAsFree {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) < 2 {
		return nil
	}

	appointment.SortByStart(candidates)

	uf := newUnionFind()
	for _, a := range candidates {
		uf.add(a.ID)
	}

	// Sweep line: walk by start time, keep the set of intervals still open,
	// union every appointment with the open intervals it intersects.
	type active struct {
		id  string
		end int64
	}
	var open []active

	for _, a := range candidates {
		startNano := a.Start.UnixNano()
		next := open[:0]
		for _, act := range open {
			if act.end > startNano {
				next = append(next, act)
			}
		}
		open = next

		for _, act := range open {
			uf.union(a.ID, act.id)
		}
		open = append(open, active{id: a.ID, end: a.End.UnixNano()})
	}

	components := make(map[string][]string)
	for _, a := range candidates {
		root := uf.find(a.ID)
		components[root] = append(components[root], a.ID)
	}

	groups := make([]Group, 0, len(components))
	for _, members := range components {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		groups = append(groups, Group{
			ID:      groupID(members),
			Members: members,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Members[0] < groups[j].Members[0]
	})

	return groups
}

// groupID hashes the sorted member ids into a stable group identifier.
func groupID(members []string) string {
	sum := sha256.Sum256([]byte(strings.Join(members, "\x00")))
	return hex.EncodeToString(sum[:8])
}

// unionFind is a disjoint-set structure keyed by appointment id.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) add(id string) {
	if _, ok := u.parent[id]; !ok {
		u.parent[id] = id
	}
}

func (u *unionFind) find(id string) string {
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	// Path compression.
	for u.parent[id] != root {
		u.parent[id], id = root, u.parent[id]
	}
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Deterministic root choice: smaller id wins.
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
