package parser

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/stackaudit/stackaudit/types"
)

// parseTfvars reads variable definitions from a .tfvars file into scan
// metadata. Unlike resource bodies, tfvars files are plain attribute sets
// and well formed in practice, so the real HCL parser is used here.
// Attributes that fail to evaluate are skipped.
func (parserClient *ParserClient) parseTfvars(content []byte, fileName string) (*types.ResourceGraph, error) {
	graph := &types.ResourceGraph{Resources: []*types.Resource{}}
	graph.Metadata.Variables = map[string]any{}

	file, diagnostics := hclsyntax.ParseConfig(content, fileName, hcl.InitialPos)
	if diagnostics.HasErrors() {
		parserClient.Logger.Warnf("Partial tfvars parse for %s: %v", fileName, diagnostics)
	}
	if file == nil || file.Body == nil {
		return graph, nil
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return graph, nil
	}

	for name, attribute := range body.Attributes {
		value, diagnostics := attribute.Expr.Value(nil)
		if diagnostics.HasErrors() {
			parserClient.Logger.Debugf("Skipping variable %s in %s: %v", name, fileName, diagnostics)
			continue
		}
		graph.Metadata.Variables[name] = ctyToGo(value)
	}

	return graph, nil
}

func ctyToGo(value cty.Value) any {
	if value.IsNull() {
		return nil
	}

	valueType := value.Type()
	switch {
	case valueType == cty.String:
		return value.AsString()
	case valueType == cty.Bool:
		return value.True()
	case valueType == cty.Number:
		float, _ := value.AsBigFloat().Float64()
		return float
	case valueType.IsTupleType() || valueType.IsListType() || valueType.IsSetType():
		items := []any{}
		for iterator := value.ElementIterator(); iterator.Next(); {
			_, element := iterator.Element()
			items = append(items, ctyToGo(element))
		}
		return items
	case valueType.IsObjectType() || valueType.IsMapType():
		entries := map[string]any{}
		for iterator := value.ElementIterator(); iterator.Next(); {
			key, element := iterator.Element()
			entries[key.AsString()] = ctyToGo(element)
		}
		return entries
	default:
		return value.GoString()
	}
}
