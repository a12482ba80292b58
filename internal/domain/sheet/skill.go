package sheet

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Skill is one entry of a player's skill list.
type Skill struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// FilterSkills returns the skills whose name contains query, ignoring case.
// When nothing contains it, names within a small edit distance of query
// are returned instead, closest first. An empty query returns all skills.
func FilterSkills(skills []Skill, query string) []Skill {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return skills
	}

	var out []Skill
	for _, s := range skills {
		if strings.Contains(strings.ToLower(s.Name), q) {
			out = append(out, s)
		}
	}
	if len(out) > 0 || len([]rune(q)) < 3 {
		return out
	}

	type scored struct {
		skill Skill
		dist  int
	}
	limit := fuzzyLimit(q)
	var near []scored
	for _, s := range skills {
		if d := nameDistance(strings.ToLower(s.Name), q); d <= limit {
			near = append(near, scored{skill: s, dist: d})
		}
	}
	sort.SliceStable(near, func(i, j int) bool { return near[i].dist < near[j].dist })
	for _, n := range near {
		out = append(out, n.skill)
	}
	return out
}

func fuzzyLimit(q string) int {
	if len([]rune(q)) >= 6 {
		return 2
	}
	return 1
}

// nameDistance is the smallest distance between q and the whole name or
// any of its words.
func nameDistance(name, q string) int {
	best := levenshtein.ComputeDistance(name, q)
	for _, w := range strings.Fields(name) {
		if d := levenshtein.ComputeDistance(w, q); d < best {
			best = d
		}
	}
	return best
}
