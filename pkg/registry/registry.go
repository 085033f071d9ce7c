// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Stage ids.
const (
	UserAgent        = "UserAgent"
	InvestorAgent    = "InvestorAgent"
	EventAgent       = "EventAgent"
	GeolocationAgent = "GeolocationAgent"
	CommuteAgent     = "CommuteAgent"
	SchedulingAgent  = "SchedulingAgent"
)

//go:embed stages.json
var embedded []byte

var (
	defaultOnce sync.Once
	defaultReg  *StageRegistry
	defaultErr  error
)

func LoadRegistry(path string) (*StageRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and checks a registry document.
func Parse(data []byte) (*StageRegistry, error) {
	var reg StageRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(reg.Stages))
	for _, s := range reg.Stages {
		if s.ID == "" {
			return nil, fmt.Errorf("stage without id")
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate stage %q", s.ID)
		}
		seen[s.ID] = true
		if s.Shape != "object" && s.Shape != "array" {
			return nil, fmt.Errorf("stage %s: unknown shape %q", s.ID, s.Shape)
		}
		if s.Backend == "inference" && s.SystemPrompt == "" {
			return nil, fmt.Errorf("stage %s: missing system prompt", s.ID)
		}
	}
	return &reg, nil
}

// Default returns the registry compiled into the binary.
func Default() *StageRegistry {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Parse(embedded)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded stage registry: %v", defaultErr))
	}
	return defaultReg
}

// Lookup finds a stage by id.
func (r *StageRegistry) Lookup(id string) (Stage, bool) {
	for _, s := range r.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

// MustLookup is Lookup for stage ids known at compile time.
func (r *StageRegistry) MustLookup(id string) Stage {
	s, ok := r.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("stage %q not in registry", id))
	}
	return s
}

// IDs lists stage ids in registry order.
func (r *StageRegistry) IDs() []string {
	ids := make([]string, len(r.Stages))
	for i, s := range r.Stages {
		ids[i] = s.ID
	}
	return ids
}
