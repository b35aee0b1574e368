package engagement

import (
	_ "embed"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rejectly/rejectly/internal/domain"
)

//go:embed messages.yaml
var defaultMessagesYAML []byte

// MessageTemplate is the copy for one notification type.
type MessageTemplate struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

// Messages is the notification copy catalog.
type Messages struct {
	Templates  map[domain.NotificationType]MessageTemplate `yaml:"templates"`
	Motivation []string                                    `yaml:"motivation"`
	Milestones map[int]string                              `yaml:"milestones"`
}

// ParseMessages decodes a YAML catalog.
func ParseMessages(data []byte) (*Messages, error) {
	var m Messages
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}
	if len(m.Templates) == 0 {
		return nil, fmt.Errorf("parse messages: no templates")
	}
	return &m, nil
}

// LoadMessages reads a catalog from path, falling back to the built-in
// copy for any type the file does not define.
func LoadMessages(path string) (*Messages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	m, err := ParseMessages(data)
	if err != nil {
		return nil, err
	}
	def := DefaultMessages()
	for typ, tmpl := range def.Templates {
		if _, ok := m.Templates[typ]; !ok {
			m.Templates[typ] = tmpl
		}
	}
	if len(m.Motivation) == 0 {
		m.Motivation = def.Motivation
	}
	if len(m.Milestones) == 0 {
		m.Milestones = def.Milestones
	}
	return m, nil
}

var (
	defaultOnce     sync.Once
	defaultMessages *Messages
)

// DefaultMessages returns the built-in catalog.
func DefaultMessages() *Messages {
	defaultOnce.Do(func() {
		m, err := ParseMessages(defaultMessagesYAML)
		if err != nil {
			panic(err) // embedded file is validated by tests
		}
		defaultMessages = m
	})
	return defaultMessages
}

// Render fills the template for typ with vars. Unknown types render the
// type name as the title.
func (m *Messages) Render(typ domain.NotificationType, vars map[string]string) (title, body string) {
	tmpl, ok := m.Templates[typ]
	if !ok {
		return string(typ), ""
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(tmpl.Title), r.Replace(tmpl.Body)
}

// RandomMotivation picks one motivational line.
func (m *Messages) RandomMotivation(rng *rand.Rand) string {
	if len(m.Motivation) == 0 {
		return "Keep going."
	}
	return m.Motivation[rng.Intn(len(m.Motivation))]
}

// Milestone returns the message for a milestone day.
func (m *Messages) Milestone(day int) string {
	if msg, ok := m.Milestones[day]; ok {
		return msg
	}
	return fmt.Sprintf("Day %d. Keep going.", day)
}
