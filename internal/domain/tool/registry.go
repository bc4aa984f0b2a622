package tool

import (
	"fmt"
	"sync"
)

// SkillRegistry reports which tool names are callable. The pipeline caller
// injects it; a nil registry means grounding is skipped.
type SkillRegistry interface {
	// Has checks whether a skill with the given name is registered.
	Has(name string) bool
}

// ArgumentValidator is optionally implemented by registries that can
// validate decoded tool-call arguments. The tool grounder type-asserts for
// it and skips argument validation when absent.
type ArgumentValidator interface {
	ValidateArguments(name string, args map[string]interface{}) bool
}

// ValidatorFunc validates the decoded arguments of one skill.
type ValidatorFunc func(args map[string]interface{}) bool

// Skill is one callable capability known to the registry.
type Skill struct {
	Name        string
	Description string
	// Validate is optional; nil means any decoded arguments are accepted.
	Validate ValidatorFunc
}

// StaticRegistry is an in-memory SkillRegistry. Registration happens at
// startup; reads are concurrent-safe afterwards.
type StaticRegistry struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		skills: make(map[string]Skill),
	}
}

// Register adds a skill. Duplicate names are rejected.
func (r *StaticRegistry) Register(s Skill) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Name == "" {
		return fmt.Errorf("skill name must not be empty")
	}
	if _, exists := r.skills[s.Name]; exists {
		return fmt.Errorf("skill %s already registered", s.Name)
	}

	r.skills[s.Name] = s
	return nil
}

// Has checks whether a skill is registered.
func (r *StaticRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.skills[name]
	return exists
}

// ValidateArguments runs the skill's validator against decoded arguments.
// Unknown skills fail; skills without a validator accept anything.
func (r *StaticRegistry) ValidateArguments(name string, args map[string]interface{}) bool {
	r.mu.RLock()
	skill, exists := r.skills[name]
	r.mu.RUnlock()

	if !exists {
		return false
	}
	if skill.Validate == nil {
		return true
	}
	return skill.Validate(args)
}

// Names lists all registered skill names.
func (r *StaticRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	return names
}
