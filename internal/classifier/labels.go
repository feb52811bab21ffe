package classifier

import (
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/sawring/sawring/internal/errors"
)

// Label is one model output class.
type Label struct {
	Name   string `yaml:"name" json:"name"`
	Action string `yaml:"action,omitempty" json:"action,omitempty"` // optional action bound to the gesture
}

// Labels is the ordered label set matching the model output vector.
type Labels struct {
	Background string  `yaml:"background" json:"background"`
	Classes    []Label `yaml:"labels" json:"labels"`
}

// DefaultLabels is the gesture set of the ring firmware model.
func DefaultLabels() Labels {
	return Labels{
		Background: "none",
		Classes: []Label{
			{Name: "double_tap", Action: "seek_back"},
			{Name: "nail_tap", Action: "fullscreen"},
			{Name: "none"},
			{Name: "swipe", Action: "seek_forward"},
			{Name: "tap", Action: "play_pause"},
		},
	}
}

// LoadLabels reads a label file. An empty path returns DefaultLabels.
func LoadLabels(path string) (Labels, error) {
	if path == "" {
		return DefaultLabels(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Labels{}, errors.New(err).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Context("path", path).
			Build()
	}

	var labels Labels
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return Labels{}, errors.New(err).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Context("path", path).
			Build()
	}
	if err := labels.Validate(); err != nil {
		return Labels{}, err
	}
	return labels, nil
}

// Validate checks that names are unique and non-empty and that the
// background label is one of them.
func (l Labels) Validate() error {
	if len(l.Classes) == 0 {
		return labelError("label set is empty", "")
	}
	seen := make(map[string]struct{}, len(l.Classes))
	for _, c := range l.Classes {
		if c.Name == "" {
			return labelError("label with empty name", "")
		}
		if _, dup := seen[c.Name]; dup {
			return labelError("duplicate label", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	if _, ok := seen[l.Background]; !ok {
		return labelError("background label is not in the label set", l.Background)
	}
	return nil
}

func labelError(msg, name string) error {
	return errors.Newf("%s", msg).
		Component("classifier").
		Category(errors.CategoryLabelLoad).
		Context("label", name).
		Build()
}

// Names returns the label names in model output order.
func (l Labels) Names() []string {
	names := make([]string, len(l.Classes))
	for i, c := range l.Classes {
		names[i] = c.Name
	}
	return names
}

// Contains reports whether name is a known label.
func (l Labels) Contains(name string) bool {
	return slices.ContainsFunc(l.Classes, func(c Label) bool { return c.Name == name })
}

// Action returns the action bound to name, if any.
func (l Labels) Action(name string) string {
	for _, c := range l.Classes {
		if c.Name == name {
			return c.Action
		}
	}
	return ""
}
