// pkg/registry/schema.go
package registry

// StageRegistry describes every stage the router can dispatch to.
type StageRegistry struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Stages      []Stage `json:"stages"`
}

type Stage struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Category    string `json:"category"`
	// Backend is "inference" for stages answered by the text-generation
	// backend and "local" for stages computed in process.
	Backend      string `json:"backend"`
	Shape        string `json:"shape"` // object | array
	SystemPrompt string `json:"systemPrompt"`
	// OutputSchema validates the payload; for array stages it validates each
	// element.
	InputSchema  map[string]interface{} `json:"inputSchema,omitempty"`
	OutputSchema map[string]interface{} `json:"outputSchema"`
	ErrorCodes   []string               `json:"errorCodes"`
	Tags         []string               `json:"tags"`
}
