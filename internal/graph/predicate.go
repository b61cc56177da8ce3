package graph

import "strings"

// Predicate is a canonical semantic relation predicate. The set is fixed;
// free-form strings are mapped onto it by NormalizePredicate and anything
// unmappable is dropped.
type Predicate string

const (
	PredParentOf        Predicate = "parent_of"
	PredChildOf         Predicate = "child_of"
	PredSiblingOf       Predicate = "sibling_of"
	PredSpouseOf        Predicate = "spouse_of"
	PredMemberOfHouse   Predicate = "member_of_house"
	PredAlliedWith      Predicate = "allied_with"
	PredRivalOf         Predicate = "rival_of"
	PredRules           Predicate = "rules"
	PredRuledBy         Predicate = "ruled_by"
	PredVassalOf        Predicate = "vassal_of"
	PredMemberOf        Predicate = "member_of"
	PredFounded         Predicate = "founded"
	PredFoundedBy       Predicate = "founded_by"
	PredLocatedIn       Predicate = "located_in"
	PredContains        Predicate = "contains_location"
	PredParticipatedIn  Predicate = "participated_in"
	PredHasParticipant  Predicate = "has_participant"
	PredPredecessorOf   Predicate = "predecessor_of"
	PredSuccessorOf     Predicate = "successor_of"
	PredContemporaryOf  Predicate = "contemporary_of"
	PredOwnsArtifact    Predicate = "owns_artifact"
	PredArtifactOwnedBy Predicate = "artifact_owned_by"
	PredCreatedArtifact Predicate = "created_artifact"
	PredMentorOf        Predicate = "mentor_of"
	PredStudentOf       Predicate = "student_of"
)

// allPredicates is the canonical enum in declaration order.
var allPredicates = []Predicate{
	PredParentOf, PredChildOf, PredSiblingOf, PredSpouseOf, PredMemberOfHouse,
	PredAlliedWith, PredRivalOf, PredRules, PredRuledBy, PredVassalOf,
	PredMemberOf, PredFounded, PredFoundedBy, PredLocatedIn, PredContains,
	PredParticipatedIn, PredHasParticipant, PredPredecessorOf, PredSuccessorOf,
	PredContemporaryOf, PredOwnsArtifact, PredArtifactOwnedBy,
	PredCreatedArtifact, PredMentorOf, PredStudentOf,
}

var predicateSet = func() map[Predicate]struct{} {
	m := make(map[Predicate]struct{}, len(allPredicates))
	for _, p := range allPredicates {
		m[p] = struct{}{}
	}
	return m
}()

// predicateAliases maps common free-form variants onto canonical predicates.
var predicateAliases = map[string]Predicate{
	"parent":        PredParentOf,
	"child":         PredChildOf,
	"sibling":       PredSiblingOf,
	"brother_of":    PredSiblingOf,
	"sister_of":     PredSiblingOf,
	"spouse":        PredSpouseOf,
	"married_to":    PredSpouseOf,
	"wife_of":       PredSpouseOf,
	"husband_of":    PredSpouseOf,
	"house_of":      PredMemberOfHouse,
	"ally":          PredAlliedWith,
	"ally_of":       PredAlliedWith,
	"alliance":      PredAlliedWith,
	"rival":         PredRivalOf,
	"enemy_of":      PredRivalOf,
	"opposes":       PredRivalOf,
	"ruler_of":      PredRules,
	"governs":       PredRules,
	"subject_of":    PredRuledBy,
	"liege_of":      PredVassalOf,
	"serves":        PredVassalOf,
	"belongs_to":    PredMemberOf,
	"part_of":       PredMemberOf,
	"established":   PredFounded,
	"created_by":    PredFoundedBy,
	"location":      PredLocatedIn,
	"in":            PredLocatedIn,
	"situated_in":   PredLocatedIn,
	"contains":      PredContains,
	"fought_in":     PredParticipatedIn,
	"attended":      PredParticipatedIn,
	"precedes":      PredPredecessorOf,
	"succeeds":      PredSuccessorOf,
	"succeeded":     PredSuccessorOf,
	"wields":        PredOwnsArtifact,
	"owns":          PredOwnsArtifact,
	"held_by":       PredArtifactOwnedBy,
	"forged":        PredCreatedArtifact,
	"teacher_of":    PredMentorOf,
	"apprentice_of": PredStudentOf,
	"student":       PredStudentOf,
}

// NormalizePredicate maps a free-form predicate string to its canonical
// form. The boolean is false when the input maps to nothing.
func NormalizePredicate(raw string) (Predicate, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, `"'`)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	if s == "" {
		return "", false
	}
	if _, ok := predicateSet[Predicate(s)]; ok {
		return Predicate(s), true
	}
	if p, ok := predicateAliases[s]; ok {
		return p, true
	}
	return "", false
}

// ValidPredicate reports whether p is a member of the canonical enum.
func ValidPredicate(p Predicate) bool {
	_, ok := predicateSet[p]
	return ok
}

// Predicates returns the canonical predicate enum.
func Predicates() []Predicate {
	out := make([]Predicate, len(allPredicates))
	copy(out, allPredicates)
	return out
}

// frontmatterKeyPredicates is the fixed table of convenience frontmatter
// keys. A field named here yields semantic relations with the mapped
// predicate; the direction is read from the owning document toward the
// field's targets (a "parents" field makes the document the child).
var frontmatterKeyPredicates = map[string]Predicate{
	"parents":         PredChildOf,
	"father":          PredChildOf,
	"mother":          PredChildOf,
	"children":        PredParentOf,
	"siblings":        PredSiblingOf,
	"spouse":          PredSpouseOf,
	"married_to":      PredSpouseOf,
	"house":           PredMemberOfHouse,
	"allies":          PredAlliedWith,
	"allied_with":     PredAlliedWith,
	"rivals":          PredRivalOf,
	"enemies":         PredRivalOf,
	"ruler":           PredRuledBy,
	"ruled_by":        PredRuledBy,
	"rules":           PredRules,
	"vassals":         PredRules,
	"liege":           PredVassalOf,
	"member_of":       PredMemberOf,
	"founded":         PredFounded,
	"founder":         PredFoundedBy,
	"location":        PredLocatedIn,
	"located_in":      PredLocatedIn,
	"participated_in": PredParticipatedIn,
	"predecessor":     PredSuccessorOf,
	"successor":       PredPredecessorOf,
	"artifacts":       PredOwnsArtifact,
	"mentor":          PredStudentOf,
	"students":        PredMentorOf,
}
