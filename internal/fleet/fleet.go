// Package fleet tracks which AMR abilities are present among connected
// participants and derives the per-ability topic names the auction
// initiator publishes CFPs to. Supplemented from original_source's AmrFleet
// singleton (daisi/src/cpps/amr/model/amr_fleet.h), which spec.md's
// distillation only references as "externally supplied" -- this package
// makes that collaborator concrete rather than leaving it unimplemented.
//
// Shaped like the teacher's content-addressed registry.Manager (a small
// struct wrapping a lookup map with Init/Register/List-style accessors),
// but holding ability->connection roster entries in memory instead of
// blobs/manifests on disk: there is nothing here that benefits from
// content-addressing.
package fleet

import (
	"fmt"
	"sort"

	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

// Member is one registered participant: its connection address and the
// ability it offers.
type Member struct {
	Connection string
	Ability    mrta.Ability
}

// Fleet is the initiator's view of which abilities are present among
// connected AMRs and which connections offer them.
type Fleet struct {
	members map[string]Member // keyed by Connection
}

// New returns an empty Fleet.
func New() *Fleet {
	return &Fleet{members: make(map[string]Member)}
}

// Register adds or updates a participant's advertised ability.
func (f *Fleet) Register(connection string, ability mrta.Ability) {
	f.members[connection] = Member{Connection: connection, Ability: ability}
}

// Unregister removes a participant, e.g. on disconnect.
func (f *Fleet) Unregister(connection string) {
	delete(f.members, connection)
}

// Abilities returns the distinct abilities currently present in the fleet,
// sorted for deterministic iteration (topic subscription order matters:
// spec.md §4.4 staggers subscriptions with a configurable delay between
// each, and that ordering must be stable run to run).
func (f *Fleet) Abilities() []mrta.Ability {
	seen := make(map[mrta.Ability]bool)
	var out []mrta.Ability
	for _, m := range f.members {
		if !seen[m.Ability] {
			seen[m.Ability] = true
			out = append(out, m.Ability)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoadCarrier != out[j].LoadCarrier {
			return out[i].LoadCarrier < out[j].LoadCarrier
		}
		return out[i].MaxPayloadKg < out[j].MaxPayloadKg
	})
	return out
}

// FittingExistingAbilities returns every registered ability that is
// sufficient for requirement (requirement.LessEq(ability)), the set the
// initiator partitions a Free task's CFP across.
func (f *Fleet) FittingExistingAbilities(requirement mrta.Ability) []mrta.Ability {
	var out []mrta.Ability
	for _, a := range f.Abilities() {
		if requirement.LessEq(a) {
			out = append(out, a)
		}
	}
	return out
}

// Connections returns every registered connection string offering
// exactly ability.
func (f *Fleet) Connections(ability mrta.Ability) []string {
	var out []string
	for _, m := range f.members {
		if m.Ability == ability {
			out = append(out, m.Connection)
		}
	}
	sort.Strings(out)
	return out
}

// TopicForAbility derives a stable topic name for an ability group. Two
// Fleets presented with the same ability always derive the same topic, a
// property the initiator and every participant sharing that ability rely
// on to rendezvous without a separate naming service.
func TopicForAbility(a mrta.Ability) string {
	return fmt.Sprintf("cfp.%s.%g", a.LoadCarrier, a.MaxPayloadKg)
}
