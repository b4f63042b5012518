package types

type Format string

const (
	FormatAuto           Format = "AUTO"
	FormatCloudFormation Format = "CLOUDFORMATION"
	FormatTerraform      Format = "TERRAFORM"
	FormatCDK            Format = "CDK"
	FormatZip            Format = "ZIP"
)

func (format Format) IsValidFormat() bool {
	switch format {
	case FormatAuto,
		FormatCloudFormation,
		FormatTerraform,
		FormatCDK,
		FormatZip:
		return true
	default:
		return false
	}
}

// SourceLocation records where a resource was found in the scanned input.
type SourceLocation struct {
	File     string `json:"file"`
	Line     int    `json:"line,omitempty"`
	Block    string `json:"block,omitempty"`
	ZipEntry string `json:"zipEntry,omitempty"`
}

// Resource is one infrastructure entity extracted from IaC source. The
// Properties and Metadata bags are schema-less: values are strings, bools,
// float64s, []any or map[string]any, and consumers branch on shape.
type Resource struct {
	Type         string            `json:"type"`
	Name         string            `json:"name"`
	Properties   map[string]any    `json:"properties"`
	Metadata     map[string]any    `json:"metadata"`
	Dependencies []string          `json:"dependencies"`
	Tags         map[string]string `json:"tags"`
	Location     SourceLocation    `json:"location"`
}

type ScanMetadata struct {
	FileName      string         `json:"fileName"`
	FileType      Format         `json:"fileType"`
	AnalysisType  string         `json:"analysisType,omitempty"`
	ResourceCount int            `json:"resourceCount"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	Outputs       map[string]any `json:"outputs,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	ZipContents   []string       `json:"zipContents,omitempty"`
}

// ResourceGraph is the parser output: the flat resource collection plus
// scan metadata. ResourceCount is always recomputed from the slice, never
// trusted from input.
type ResourceGraph struct {
	Resources []*Resource  `json:"resources"`
	Metadata  ScanMetadata `json:"metadata"`
}

func (graph *ResourceGraph) Finalize() {
	graph.Metadata.ResourceCount = len(graph.Resources)
}
