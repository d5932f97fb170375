// Package taxonomy holds the static reference tables used to widen a search:
// job-title synonym groups and the state adjacency table. A Taxonomy is built
// once and is read-only afterwards, so it is safe for concurrent use.
package taxonomy

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

type TitleGroup struct {
	Name   string   `yaml:"name"`
	Titles []string `yaml:"titles"`
}

// StateAdjacency maps a two-letter state code to the codes of nearby states,
// the state itself included.
type StateAdjacency map[string][]string

type document struct {
	TitleGroups []TitleGroup        `yaml:"title_groups"`
	States      map[string]string   `yaml:"states"`
	Regions     map[string][]string `yaml:"regions"`
}

type Taxonomy struct {
	groups    []TitleGroup
	adjacency StateAdjacency
	// full name or code -> code
	stateCodes map[string]string
	stateNames map[string]bool
	cityState  *regexp.Regexp
}

// Default returns the taxonomy compiled into the binary.
func Default() (*Taxonomy, error) {
	return Load(bytes.NewReader(defaultTaxonomy))
}

// LoadFile loads a taxonomy from path, or the default one when path is empty.
func LoadFile(path string) (*Taxonomy, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Taxonomy, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	return build(doc)
}

func build(doc document) (*Taxonomy, error) {
	t := &Taxonomy{
		adjacency:  make(StateAdjacency),
		stateCodes: make(map[string]string),
		stateNames: make(map[string]bool),
	}

	owner := make(map[string]string)
	for _, g := range doc.TitleGroups {
		group := TitleGroup{Name: g.Name}
		for _, title := range g.Titles {
			title = normalize(title)
			if title == "" {
				continue
			}
			if prev, ok := owner[title]; ok {
				if prev == g.Name {
					continue
				}
				return nil, fmt.Errorf("title %q appears in groups %q and %q", title, prev, g.Name)
			}
			owner[title] = g.Name
			group.Titles = append(group.Titles, title)
		}
		if len(group.Titles) > 0 {
			t.groups = append(t.groups, group)
		}
	}

	for code, name := range doc.States {
		code, name = normalize(code), normalize(name)
		if len(code) != 2 || name == "" {
			return nil, fmt.Errorf("invalid state entry %q: %q", code, name)
		}
		t.stateCodes[code] = code
		t.stateCodes[name] = code
		t.stateNames[name] = true
	}

	// sorted so validation errors are deterministic
	regionNames := make([]string, 0, len(doc.Regions))
	for name := range doc.Regions {
		regionNames = append(regionNames, name)
	}
	sort.Strings(regionNames)

	for _, region := range regionNames {
		codes := make([]string, 0, len(doc.Regions[region]))
		for _, code := range doc.Regions[region] {
			code = normalize(code)
			if t.stateCodes[code] != code {
				return nil, fmt.Errorf("region %q references unknown state %q", region, code)
			}
			if _, ok := t.adjacency[code]; ok {
				return nil, fmt.Errorf("state %q belongs to more than one region", code)
			}
			codes = append(codes, code)
		}
		for _, code := range codes {
			t.adjacency[code] = codes
		}
	}

	for code := range doc.States {
		if _, ok := t.adjacency[normalize(code)]; !ok {
			return nil, fmt.Errorf("state %q has no region", code)
		}
	}

	t.cityState = cityStatePattern(t.stateCodes)
	return t, nil
}

// cityStatePattern matches "<city>, <state>" or "<city> <state>" at the end
// of a string, where state is a known code or full name.
func cityStatePattern(states map[string]string) *regexp.Regexp {
	alts := make([]string, 0, len(states))
	for s := range states {
		alts = append(alts, regexp.QuoteMeta(s))
	}
	// longest first so "west virginia" wins over "virginia"
	sort.Slice(alts, func(i, j int) bool {
		if len(alts[i]) != len(alts[j]) {
			return len(alts[i]) > len(alts[j])
		}
		return alts[i] < alts[j]
	})
	return regexp.MustCompile(`^(.+?)(?:,\s*|\s+)(` + strings.Join(alts, "|") + `)$`)
}

// Groups returns a copy of the title groups in declaration order.
func (t *Taxonomy) Groups() []TitleGroup {
	out := make([]TitleGroup, len(t.groups))
	for i, g := range t.groups {
		out[i] = TitleGroup{Name: g.Name, Titles: append([]string(nil), g.Titles...)}
	}
	return out
}

// Nearby returns the codes of the states near code, or nil.
func (t *Taxonomy) Nearby(code string) []string {
	return append([]string(nil), t.adjacency[normalize(code)]...)
}

// ResolveState maps a state code or full name to its code.
func (t *Taxonomy) ResolveState(s string) (string, bool) {
	code, ok := t.stateCodes[normalize(s)]
	return code, ok
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// set is an insertion-ordered string set.
type set struct {
	items []string
	seen  map[string]bool
}

func newSet() *set {
	return &set{seen: make(map[string]bool)}
}

func (s *set) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}
