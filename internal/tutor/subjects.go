// Package tutor models a tutoring conversation and drives message exchange
// with the backend tutor.
package tutor

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownSubject means a subject id is not in the catalogue.
var ErrUnknownSubject = errors.New("unknown subject")

//go:embed subjects.yaml
var subjectsYAML []byte

// Subject is one entry of the subject catalogue.
type Subject struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Colour string `yaml:"colour"`
	Blurb  string `yaml:"blurb"`
}

var loadSubjects = sync.OnceValues(func() ([]Subject, error) {
	return parseSubjects(subjectsYAML)
})

func parseSubjects(data []byte) ([]Subject, error) {
	var subjects []Subject
	if err := yaml.Unmarshal(data, &subjects); err != nil {
		return nil, fmt.Errorf("parse subject catalogue: %w", err)
	}
	seen := make(map[string]struct{}, len(subjects))
	for i, subject := range subjects {
		if strings.TrimSpace(subject.ID) == "" || strings.TrimSpace(subject.Name) == "" {
			return nil, fmt.Errorf("subject catalogue entry %d: id and name are required", i)
		}
		if _, ok := seen[subject.ID]; ok {
			return nil, fmt.Errorf("subject catalogue: duplicate id %q", subject.ID)
		}
		seen[subject.ID] = struct{}{}
	}
	return subjects, nil
}

// Subjects returns the catalogue in display order.
func Subjects() ([]Subject, error) {
	subjects, err := loadSubjects()
	if err != nil {
		return nil, err
	}
	return append([]Subject(nil), subjects...), nil
}

// LookupSubject finds a subject by id, case-insensitively.
func LookupSubject(id string) (Subject, error) {
	subjects, err := loadSubjects()
	if err != nil {
		return Subject{}, err
	}
	id = strings.ToLower(strings.TrimSpace(id))
	for _, subject := range subjects {
		if subject.ID == id {
			return subject, nil
		}
	}
	return Subject{}, fmt.Errorf("%w: %q", ErrUnknownSubject, id)
}
