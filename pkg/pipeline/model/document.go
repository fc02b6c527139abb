package model

// SchemaVersion tags the wire format of the compiled graph document.
const SchemaVersion = "2.0.0"

// SDKVersion tags the compiler release that produced a document.
const SDKVersion = "0.1.0"

// Document is the executable graph in its wire format. Field and block
// names are a fixed contract parsed structurally by external runners;
// renaming any key is a breaking change.
type Document struct {
	PipelineInfo  PipelineInfo   `yaml:"pipelineInfo" json:"pipelineInfo"`
	SchemaVersion string         `yaml:"schemaVersion" json:"schemaVersion"`
	SDKVersion    string         `yaml:"sdkVersion" json:"sdkVersion"`
	Nodes         []NodeDocument `yaml:"nodes" json:"nodes"`
}

// PipelineInfo is the root pipeline-level block.
type PipelineInfo struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// NodeDocument pairs one node's executor and task blocks. Nodes appear in
// the compiler's topological emission order.
type NodeDocument struct {
	Name     string   `yaml:"name" json:"name"`
	Executor Executor `yaml:"executor" json:"executor"`
	Task     Task     `yaml:"task" json:"task"`
}

// Executor describes how the runner starts the node's container.
type Executor struct {
	Image string   `yaml:"image" json:"image"`
	Args  []string `yaml:"args" json:"args"`
}

// Task describes the node's place in the graph and its resolved
// parameter values.
type Task struct {
	ComponentRef   string         `yaml:"componentRef" json:"componentRef"`
	DependentTasks []string       `yaml:"dependentTasks" json:"dependentTasks"`
	Parameters     map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	CachingOptions CachingOptions `yaml:"cachingOptions" json:"cachingOptions"`
}

// CachingOptions carries the node's cache flag through to the runner.
type CachingOptions struct {
	EnableCache bool `yaml:"enableCache" json:"enableCache"`
}
