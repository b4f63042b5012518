package parser

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/stackaudit/stackaudit/types"
)

// parseCloudFormation accepts a template as YAML or JSON (YAML first) and
// emits one resource per entry under the Resources block. A template with
// no Resources block is valid and yields zero resources; a template that
// parses as neither YAML nor JSON is a hard failure.
func (parserClient *ParserClient) parseCloudFormation(content []byte, fileName string) (*types.ResourceGraph, error) {
	document, err := decodeTemplate(content)
	if err != nil {
		return nil, &ParseError{FileName: fileName, Format: string(types.FormatCloudFormation), Err: err}
	}

	graph := &types.ResourceGraph{Resources: []*types.Resource{}}

	if parameters, ok := document["Parameters"].(map[string]any); ok {
		graph.Metadata.Parameters = parameters
	}
	if outputs, ok := document["Outputs"].(map[string]any); ok {
		graph.Metadata.Outputs = outputs
	}

	resourcesRaw, ok := document["Resources"]
	if !ok {
		return graph, nil
	}
	resources, ok := resourcesRaw.(map[string]any)
	if !ok {
		return nil, &ParseError{
			FileName: fileName,
			Format:   string(types.FormatCloudFormation),
			Err:      fmt.Errorf("Resources block is not a mapping"),
		}
	}

	for logicalName, raw := range resources {
		entry, ok := raw.(map[string]any)
		if !ok {
			parserClient.Logger.Warnf("Skipping resource %s: entry is not a mapping", logicalName)
			continue
		}

		resourceType, ok := entry["Type"].(string)
		if !ok || resourceType == "" {
			parserClient.Logger.Warnf("Skipping resource %s: missing Type", logicalName)
			continue
		}

		properties, ok := entry["Properties"].(map[string]any)
		if !ok {
			properties = map[string]any{}
		}

		metadata := map[string]any{}
		if condition, ok := entry["Condition"]; ok {
			metadata["Condition"] = condition
		}
		if deletionPolicy, ok := entry["DeletionPolicy"]; ok {
			metadata["DeletionPolicy"] = deletionPolicy
		}

		dependencies := normalizeDependsOn(entry["DependsOn"])
		if dependencies != nil {
			metadata["DependsOn"] = dependencies
		} else {
			dependencies = []string{}
		}

		resource := &types.Resource{
			Type:         resourceType,
			Name:         logicalName,
			Properties:   properties,
			Metadata:     metadata,
			Dependencies: dependencies,
			Tags:         extractKeyValueTags(properties["Tags"]),
			Location: types.SourceLocation{
				File:  fileName,
				Block: logicalName,
			},
		}
		graph.Resources = append(graph.Resources, resource)
	}

	return graph, nil
}

func decodeTemplate(content []byte) (map[string]any, error) {
	var document map[string]any

	yamlErr := yaml.Unmarshal(content, &document)
	if yamlErr == nil && document != nil {
		return document, nil
	}

	jsonErr := json.Unmarshal(content, &document)
	if jsonErr == nil && document != nil {
		return document, nil
	}

	if yamlErr != nil {
		return nil, fmt.Errorf("document is neither YAML nor JSON: %w", yamlErr)
	}
	return nil, fmt.Errorf("document is empty")
}

// normalizeDependsOn flattens the scalar and array spellings of DependsOn
// into a string slice. Returns nil when DependsOn is absent or has an
// unexpected shape.
func normalizeDependsOn(raw any) []string {
	switch value := raw.(type) {
	case string:
		return []string{value}
	case []any:
		dependencies := []string{}
		for _, item := range value {
			if name, ok := item.(string); ok {
				dependencies = append(dependencies, name)
			}
		}
		return dependencies
	default:
		return nil
	}
}

// extractKeyValueTags reads tags from the CloudFormation [{Key,Value}]
// convention. Any other shape yields no tags rather than an error.
func extractKeyValueTags(raw any) map[string]string {
	tags := map[string]string{}

	entries, ok := raw.([]any)
	if !ok {
		return tags
	}

	for _, rawEntry := range entries {
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			continue
		}
		key, keyOk := entry["Key"].(string)
		value, valueOk := entry["Value"].(string)
		if keyOk && valueOk {
			tags[key] = value
		}
	}
	return tags
}
