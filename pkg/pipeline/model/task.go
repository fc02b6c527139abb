package model

// Metadata is the per-task metadata record. It is serialised to JSON and
// handed to the component entrypoint via the --metadata flag.
type Metadata struct {
	BasePath     string `json:"base_path"`
	PipelineName string `json:"pipeline_name"`
	RunID        string `json:"run_id"`
	ComponentID  string `json:"component_id"`
	CacheKey     string `json:"cache_key"`
}

// CompiledTask is one node of the executable graph, produced once per
// successful compile and immutable afterwards. Arguments is the complete
// container argument vector: the fixed entrypoint flags followed by the
// component's own resolved args.
type CompiledTask struct {
	NodeID             string
	Image              string
	Arguments          []string
	InputManifestPath  string
	OutputManifestPath string
	CacheEnabled       bool
	DependentTaskIDs   []string
}
