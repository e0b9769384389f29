package advisor

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultSlug = "default"

var ErrUnknownAdvisor = errors.New("unknown advisor")

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Persona configures the realtime voice model for one advisor.
type Persona struct {
	Slug         string `yaml:"slug" json:"slug"`
	Name         string `yaml:"name" json:"name"`
	Voice        string `yaml:"voice" json:"voice,omitempty"`
	Instructions string `yaml:"instructions" json:"instructions"`
}

type personasFile struct {
	Advisors []Persona `yaml:"advisors"`
}

const defaultInstructions = `You are Studentize, a patient academic advisor talking with a student by voice.
Keep answers short and conversational. Ask one question at a time, help the student
break goals into concrete next steps, and never invent deadlines or policies.`

func DefaultPersona() Persona {
	return Persona{
		Slug:         DefaultSlug,
		Name:         "Studentize Advisor",
		Instructions: defaultInstructions,
	}
}

// Catalog is an immutable set of personas. The default persona is always present.
type Catalog struct {
	personas map[string]Persona
}

func NewCatalog(personas ...Persona) (*Catalog, error) {
	c := &Catalog{personas: map[string]Persona{DefaultSlug: DefaultPersona()}}
	for _, p := range personas {
		p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
		p.Instructions = strings.TrimSpace(p.Instructions)
		if !slugPattern.MatchString(p.Slug) {
			return nil, fmt.Errorf("advisor slug %q is invalid", p.Slug)
		}
		if p.Instructions == "" {
			return nil, fmt.Errorf("advisor %q has no instructions", p.Slug)
		}
		if p.Name == "" {
			p.Name = p.Slug
		}
		c.personas[p.Slug] = p
	}
	return c, nil
}

// Load reads personas from a YAML file. An empty path yields only the default persona.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return NewCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read advisor personas: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var file personasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse advisor personas: %w", err)
	}
	return NewCatalog(file.Advisors...)
}

// Get returns the persona for slug; an empty slug selects the default.
func (c *Catalog) Get(slug string) (Persona, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		slug = DefaultSlug
	}
	p, ok := c.personas[slug]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %s", ErrUnknownAdvisor, slug)
	}
	return p, nil
}
