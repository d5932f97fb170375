package taxonomy

import "strings"

// ExpandLocation widens a location to equivalent and nearby terms:
// the input itself, nearby state codes when the input names a state, and
// for "City, ST" inputs the bare city plus the city in every nearby state.
// Unparseable input comes back as the lower-cased string alone.
func (t *Taxonomy) ExpandLocation(raw string) []string {
	loc := normalize(raw)
	out := newSet()
	out.add(loc)

	if code, ok := t.stateCodes[loc]; ok {
		for _, near := range t.adjacency[code] {
			out.add(near)
		}
		return out.items
	}

	m := t.cityState.FindStringSubmatch(loc)
	if m == nil {
		return out.items
	}

	city := strings.TrimRight(strings.TrimSpace(m[1]), ", ")
	code := t.stateCodes[m[2]]
	if city == "" {
		return out.items
	}

	// "new york, ny": a city named like a state would widen to the whole
	// region on the next expansion, so it is not added on its own
	if !t.stateNames[city] {
		out.add(city)
	}
	for _, near := range t.adjacency[code] {
		out.add(city + ", " + near)
	}
	return out.items
}
