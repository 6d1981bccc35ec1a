// Package templates holds narrative beat-structure definitions and turns
// them into analysis prompts. Built-in beat sheets can be extended with
// user-supplied YAML files.
package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Beat is a single structural beat with its expected position expressed
// as a percentage range of the manuscript.
type Beat struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	RangeStart  float64 `yaml:"range_start" json:"range_start"`
	RangeEnd    float64 `yaml:"range_end" json:"range_end"`
}

// Template is a named beat sheet
type Template struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Beats       []Beat `yaml:"beats" json:"beats"`
}

// Validate checks structural soundness of a template
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template id must not be empty")
	}
	if len(t.Beats) == 0 {
		return fmt.Errorf("template %s has no beats", t.ID)
	}
	for i, b := range t.Beats {
		if b.Name == "" {
			return fmt.Errorf("template %s: beat %d has no name", t.ID, i)
		}
		if b.RangeStart < 0 || b.RangeEnd > 100 || b.RangeStart > b.RangeEnd {
			return fmt.Errorf("template %s: beat %q has invalid range %.1f-%.1f", t.ID, b.Name, b.RangeStart, b.RangeEnd)
		}
	}
	return nil
}

// Scene is the manuscript slice handed to the prompt renderer
type Scene struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Synopsis string `json:"synopsis"`
	Subplot  string `json:"subplot,omitempty"`
	Words    int    `json:"words"`
}

// SystemPrompt renders the analysis system prompt for this template
func (t *Template) SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a story-structure analyst. Map the manuscript scenes below onto the ")
	sb.WriteString(t.Name)
	sb.WriteString(" beat structure.\n\nBeats:\n")
	for _, b := range t.Beats {
		fmt.Fprintf(&sb, "- %s (%.0f%%-%.0f%% of manuscript): %s\n", b.Name, b.RangeStart, b.RangeEnd, b.Description)
	}
	sb.WriteString("\nRespond with a JSON array only, no prose. Each element: ")
	sb.WriteString(`{"beat": string, "scene": number, "confidence": number 0-1, "momentum": number -1 to 1, "note": string}.`)
	sb.WriteString(" Momentum reflects whether narrative tension rises or falls at that point.")
	return sb.String()
}

// UserPrompt renders the scene listing for this template
func (t *Template) UserPrompt(scenes []Scene) string {
	var sb strings.Builder
	totalWords := 0
	for _, s := range scenes {
		totalWords += s.Words
	}
	fmt.Fprintf(&sb, "Manuscript: %d scenes, %d words.\n\n", len(scenes), totalWords)

	position := 0
	for _, s := range scenes {
		pct := 0.0
		if totalWords > 0 {
			pct = float64(position) / float64(totalWords) * 100
		}
		fmt.Fprintf(&sb, "Scene %d (%.1f%%): %s\n", s.Number, pct, s.Title)
		if s.Subplot != "" {
			fmt.Fprintf(&sb, "Subplot: %s\n", s.Subplot)
		}
		fmt.Fprintf(&sb, "%s\n\n", s.Synopsis)
		position += s.Words
	}

	return sb.String()
}

// Registry holds beat templates by ID
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry creates a registry pre-loaded with the built-in beat sheets
func NewRegistry() *Registry {
	r := &Registry{
		templates: make(map[string]*Template),
	}
	for _, t := range builtins() {
		r.templates[t.ID] = t
	}
	return r
}

// Get retrieves a template by ID
func (r *Registry) Get(id string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("beat template %q not found", id)
	}
	return t, nil
}

// List returns all template IDs, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Register adds or replaces a template
func (r *Registry) Register(t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	return nil
}

// LoadDir loads user template YAML files from a directory. Files that
// fail to parse or validate are skipped with the error returned for the
// first failure; built-ins with the same ID are overridden.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read template dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}

		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", entry.Name(), err)
		}

		if err := r.Register(&t); err != nil {
			return fmt.Errorf("invalid template %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// builtins returns the built-in beat sheets
func builtins() []*Template {
	return []*Template{
		{
			ID:          "save-the-cat",
			Name:        "Save the Cat",
			Description: "Blake Snyder's fifteen-beat screenplay structure",
			Beats: []Beat{
				{Name: "Opening Image", Description: "A snapshot of the world before change", RangeStart: 0, RangeEnd: 1},
				{Name: "Theme Stated", Description: "The story's lesson is hinted at", RangeStart: 1, RangeEnd: 5},
				{Name: "Setup", Description: "The hero's status quo and flaws", RangeStart: 1, RangeEnd: 10},
				{Name: "Catalyst", Description: "The inciting incident", RangeStart: 10, RangeEnd: 12},
				{Name: "Debate", Description: "The hero hesitates", RangeStart: 12, RangeEnd: 20},
				{Name: "Break into Two", Description: "The hero commits to the journey", RangeStart: 20, RangeEnd: 22},
				{Name: "B Story", Description: "A secondary relationship carries the theme", RangeStart: 22, RangeEnd: 30},
				{Name: "Fun and Games", Description: "The promise of the premise", RangeStart: 30, RangeEnd: 50},
				{Name: "Midpoint", Description: "A false victory or false defeat", RangeStart: 50, RangeEnd: 52},
				{Name: "Bad Guys Close In", Description: "Pressure mounts, allies fall away", RangeStart: 52, RangeEnd: 75},
				{Name: "All Is Lost", Description: "The lowest point", RangeStart: 75, RangeEnd: 78},
				{Name: "Dark Night of the Soul", Description: "The hero grieves before insight", RangeStart: 78, RangeEnd: 80},
				{Name: "Break into Three", Description: "The solution appears", RangeStart: 80, RangeEnd: 82},
				{Name: "Finale", Description: "The hero applies the lesson and wins", RangeStart: 82, RangeEnd: 99},
				{Name: "Final Image", Description: "The mirror of the opening image", RangeStart: 99, RangeEnd: 100},
			},
		},
		{
			ID:          "heros-journey",
			Name:        "Hero's Journey",
			Description: "Campbell's monomyth in twelve stages",
			Beats: []Beat{
				{Name: "Ordinary World", Description: "The hero's familiar life", RangeStart: 0, RangeEnd: 10},
				{Name: "Call to Adventure", Description: "A challenge disrupts the ordinary", RangeStart: 10, RangeEnd: 15},
				{Name: "Refusal of the Call", Description: "Fear and reluctance", RangeStart: 15, RangeEnd: 20},
				{Name: "Meeting the Mentor", Description: "Guidance arrives", RangeStart: 20, RangeEnd: 25},
				{Name: "Crossing the Threshold", Description: "Commitment to the special world", RangeStart: 25, RangeEnd: 30},
				{Name: "Tests, Allies, Enemies", Description: "The rules of the special world", RangeStart: 30, RangeEnd: 50},
				{Name: "Approach to the Inmost Cave", Description: "Preparation for the ordeal", RangeStart: 50, RangeEnd: 60},
				{Name: "Ordeal", Description: "The central crisis", RangeStart: 60, RangeEnd: 70},
				{Name: "Reward", Description: "Seizing the sword", RangeStart: 70, RangeEnd: 75},
				{Name: "The Road Back", Description: "Recommitment to return", RangeStart: 75, RangeEnd: 85},
				{Name: "Resurrection", Description: "The final test", RangeStart: 85, RangeEnd: 95},
				{Name: "Return with the Elixir", Description: "The hero brings change home", RangeStart: 95, RangeEnd: 100},
			},
		},
		{
			ID:          "story-circle",
			Name:        "Story Circle",
			Description: "Dan Harmon's eight-step structure",
			Beats: []Beat{
				{Name: "You", Description: "A character in a zone of comfort", RangeStart: 0, RangeEnd: 12},
				{Name: "Need", Description: "They want something", RangeStart: 12, RangeEnd: 25},
				{Name: "Go", Description: "They enter an unfamiliar situation", RangeStart: 25, RangeEnd: 37},
				{Name: "Search", Description: "They adapt to it", RangeStart: 37, RangeEnd: 50},
				{Name: "Find", Description: "They get what they wanted", RangeStart: 50, RangeEnd: 62},
				{Name: "Take", Description: "They pay a heavy price", RangeStart: 62, RangeEnd: 75},
				{Name: "Return", Description: "They return to their familiar situation", RangeStart: 75, RangeEnd: 87},
				{Name: "Change", Description: "Having changed", RangeStart: 87, RangeEnd: 100},
			},
		},
	}
}
