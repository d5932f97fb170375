package taxonomy

import "strings"

// GroupFor returns the titles interchangeable with title. The input is
// lower-cased with runs of whitespace collapsed; the first group with a
// member containing it wins. With no matching group the result is the
// normalised input alone.
func (t *Taxonomy) GroupFor(title string) []string {
	needle := normalize(title)

	for _, g := range t.groups {
		for _, member := range g.Titles {
			if strings.Contains(member, needle) {
				return append([]string(nil), g.Titles...)
			}
		}
	}
	return []string{needle}
}
