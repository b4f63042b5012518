package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stackaudit/stackaudit/types"
)

// The Terraform path is a tolerant scanner, not an HCL grammar. Source
// documents are often syntactically loose, so the scanner extracts what it
// can: resource blocks are located textually, bodies are parsed into
// key/value pairs over balanced braces, and anything unrecognized passes
// through as a raw string. A block that cannot be scanned is skipped; the
// parse only hard-fails when every located block is unscannable, which
// marks a structurally broken document rather than a loose one.

var resourceHeaderPattern = regexp.MustCompile(`(?m)^[ \t]*resource[ \t]+"([^"]+)"[ \t]+"([^"]+)"[ \t]*\{`)

// referencePattern matches type.name style references in a resource body.
// Reserved Terraform namespaces are filtered afterwards; string literals
// that happen to look like references are knowingly kept.
var referencePattern = regexp.MustCompile(`\b([a-z][a-z0-9_]*\.[a-zA-Z][a-zA-Z0-9_-]*)\b`)

var reservedReferencePrefixes = map[string]bool{
	"var":       true,
	"local":     true,
	"module":    true,
	"data":      true,
	"each":      true,
	"count":     true,
	"path":      true,
	"self":      true,
	"terraform": true,
	"provider":  true,
}

func (parserClient *ParserClient) parseTerraform(content []byte, fileName string) (*types.ResourceGraph, error) {
	text := string(content)
	graph := &types.ResourceGraph{Resources: []*types.Resource{}}

	headers := resourceHeaderPattern.FindAllStringSubmatchIndex(text, -1)
	skipped := 0
	for _, match := range headers {
		resourceType := text[match[2]:match[3]]
		resourceName := text[match[4]:match[5]]
		openBrace := match[1] - 1

		body, _, err := scanBalancedBraces(text, openBrace)
		if err != nil {
			parserClient.Logger.Warnf("Skipping resource %s.%s in %s: %v", resourceType, resourceName, fileName, err)
			skipped++
			continue
		}

		properties := parseBlockBody(body)
		dependencies := extractExplicitDependencies(properties)
		dependencies = appendImplicitReferences(dependencies, body, resourceType, resourceName)

		resource := &types.Resource{
			Type:         resourceType,
			Name:         fmt.Sprintf("%s.%s", resourceType, resourceName),
			Properties:   properties,
			Metadata:     map[string]any{},
			Dependencies: dependencies,
			Tags:         extractBlockTags(properties),
			Location: types.SourceLocation{
				File:  fileName,
				Line:  lineAt(text, match[0]),
				Block: fmt.Sprintf("%s.%s", resourceType, resourceName),
			},
		}
		graph.Resources = append(graph.Resources, resource)
	}

	if len(headers) > 0 && skipped == len(headers) {
		return nil, &ParseError{
			FileName: fileName,
			Format:   string(types.FormatTerraform),
			Err:      fmt.Errorf("no resource block could be scanned"),
		}
	}

	return graph, nil
}

// scanBalancedBraces returns the body between the brace at openBrace and
// its matching close, honoring strings and comments.
func scanBalancedBraces(text string, openBrace int) (string, int, error) {
	if openBrace < 0 || openBrace >= len(text) || text[openBrace] != '{' {
		return "", 0, fmt.Errorf("no opening brace")
	}

	depth := 0
	inString := false
	inLineComment := false
	inBlockComment := false

	for position := openBrace; position < len(text); position++ {
		character := text[position]

		switch {
		case inLineComment:
			if character == '\n' {
				inLineComment = false
			}
		case inBlockComment:
			if character == '*' && position+1 < len(text) && text[position+1] == '/' {
				inBlockComment = false
				position++
			}
		case inString:
			if character == '\\' {
				position++
			} else if character == '"' {
				inString = false
			}
		case character == '"':
			inString = true
		case character == '#':
			inLineComment = true
		case character == '/' && position+1 < len(text) && text[position+1] == '/':
			inLineComment = true
			position++
		case character == '/' && position+1 < len(text) && text[position+1] == '*':
			inBlockComment = true
			position++
		case character == '{':
			depth++
		case character == '}':
			depth--
			if depth == 0 {
				return text[openBrace+1 : position], position, nil
			}
		}
	}

	return "", 0, fmt.Errorf("unbalanced braces")
}

// parseBlockBody parses an HCL-lite body into key/value pairs: quoted
// strings, booleans, numbers, lists, nested maps and nested blocks.
// Unrecognized value tokens pass through raw.
func parseBlockBody(body string) map[string]any {
	values := map[string]any{}
	position := 0

	for position < len(body) {
		position = skipIgnorable(body, position)
		if position >= len(body) {
			break
		}

		identifier, next := readIdentifier(body, position)
		if identifier == "" {
			// Not at an identifier; resynchronize at the next line.
			position = skipToLineEnd(body, position)
			continue
		}
		position = skipSpaces(body, next)

		if position < len(body) && body[position] == '=' {
			value, after := parseValueToken(body, position+1)
			values[identifier] = value
			position = after
			continue
		}

		// Possible nested block, with optional string labels.
		labelEnd := position
		for labelEnd < len(body) && body[labelEnd] == '"' {
			_, afterLabel := readQuotedString(body, labelEnd)
			labelEnd = skipSpaces(body, afterLabel)
		}
		if labelEnd < len(body) && body[labelEnd] == '{' {
			inner, bodyEnd, err := scanBalancedBraces(body, labelEnd)
			if err != nil {
				position = skipToLineEnd(body, labelEnd)
				continue
			}
			values[identifier] = parseBlockBody(inner)
			position = bodyEnd + 1
			continue
		}

		position = skipToLineEnd(body, position)
	}

	return values
}

func parseValueToken(body string, position int) (any, int) {
	position = skipSpaces(body, position)
	if position >= len(body) {
		return "", position
	}

	switch body[position] {
	case '"':
		value, after := readQuotedString(body, position)
		return value, after
	case '[':
		return parseListToken(body, position)
	case '{':
		inner, bodyEnd, err := scanBalancedBraces(body, position)
		if err != nil {
			return rawToken(body, position)
		}
		return parseBlockBody(inner), bodyEnd + 1
	default:
		return scalarToken(rawToken(body, position))
	}
}

func parseListToken(body string, position int) (any, int) {
	depth := 0
	inString := false
	start := position

	for ; position < len(body); position++ {
		character := body[position]
		if inString {
			if character == '\\' {
				position++
			} else if character == '"' {
				inString = false
			}
			continue
		}
		switch character {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				items := splitListItems(body[start+1 : position])
				return items, position + 1
			}
		}
	}

	// Unterminated list: pass the remainder through raw.
	return strings.TrimSpace(body[start:]), len(body)
}

func splitListItems(inner string) []any {
	items := []any{}
	depth := 0
	inString := false
	itemStart := 0

	flush := func(end int) {
		trimmed := strings.TrimSpace(inner[itemStart:end])
		if trimmed == "" {
			return
		}
		value, _ := parseValueToken(trimmed, 0)
		items = append(items, value)
	}

	for position := 0; position < len(inner); position++ {
		character := inner[position]
		if inString {
			if character == '\\' {
				position++
			} else if character == '"' {
				inString = false
			}
			continue
		}
		switch character {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
		case ',':
			if depth == 0 {
				flush(position)
				itemStart = position + 1
			}
		}
	}
	flush(len(inner))
	return items
}

func scalarToken(token string, after int) (any, int) {
	switch token {
	case "true":
		return true, after
	case "false":
		return false, after
	case "null":
		return nil, after
	}
	if integer, err := strconv.ParseInt(token, 10, 64); err == nil {
		return integer, after
	}
	if float, err := strconv.ParseFloat(token, 64); err == nil {
		return float, after
	}
	return token, after
}

func rawToken(body string, position int) (string, int) {
	end := position
	for end < len(body) && body[end] != '\n' && body[end] != ',' && body[end] != ']' {
		end++
	}
	return strings.TrimSpace(body[position:end]), end
}

func readQuotedString(body string, position int) (string, int) {
	var builder strings.Builder
	for position++; position < len(body); position++ {
		character := body[position]
		if character == '\\' && position+1 < len(body) {
			position++
			builder.WriteByte(body[position])
			continue
		}
		if character == '"' {
			return builder.String(), position + 1
		}
		builder.WriteByte(character)
	}
	return builder.String(), position
}

func readIdentifier(body string, position int) (string, int) {
	start := position
	for position < len(body) {
		character := body[position]
		if character == '_' || character == '-' ||
			(character >= 'a' && character <= 'z') ||
			(character >= 'A' && character <= 'Z') ||
			(character >= '0' && character <= '9') {
			position++
			continue
		}
		break
	}
	return body[start:position], position
}

func skipSpaces(body string, position int) int {
	for position < len(body) && (body[position] == ' ' || body[position] == '\t') {
		position++
	}
	return position
}

func skipIgnorable(body string, position int) int {
	for position < len(body) {
		character := body[position]
		switch {
		case character == ' ' || character == '\t' || character == '\n' || character == '\r':
			position++
		case character == '#':
			position = skipToLineEnd(body, position)
		case character == '/' && position+1 < len(body) && body[position+1] == '/':
			position = skipToLineEnd(body, position)
		case character == '/' && position+1 < len(body) && body[position+1] == '*':
			end := strings.Index(body[position+2:], "*/")
			if end < 0 {
				return len(body)
			}
			position += end + 4
		default:
			return position
		}
	}
	return position
}

func skipToLineEnd(body string, position int) int {
	for position < len(body) && body[position] != '\n' {
		position++
	}
	return position
}

func extractExplicitDependencies(properties map[string]any) []string {
	dependencies := []string{}
	entries, ok := properties["depends_on"].([]any)
	if !ok {
		return dependencies
	}
	for _, entry := range entries {
		if reference, ok := entry.(string); ok && reference != "" {
			dependencies = append(dependencies, reference)
		}
	}
	return dependencies
}

// appendImplicitReferences scans the raw body for type.name references and
// adds them as dependencies, deduplicated against the explicit ones. This
// intentionally conflates real references with look-alike string literals.
func appendImplicitReferences(dependencies []string, body string, ownType string, ownName string) []string {
	seen := map[string]bool{}
	for _, dependency := range dependencies {
		seen[dependency] = true
	}
	self := fmt.Sprintf("%s.%s", ownType, ownName)

	for _, match := range referencePattern.FindAllStringSubmatch(body, -1) {
		reference := match[1]
		prefix := reference[:strings.Index(reference, ".")]
		if reservedReferencePrefixes[prefix] || reference == self || seen[reference] {
			continue
		}
		seen[reference] = true
		dependencies = append(dependencies, reference)
	}
	return dependencies
}

func extractBlockTags(properties map[string]any) map[string]string {
	tags := map[string]string{}
	block, ok := properties["tags"].(map[string]any)
	if !ok {
		return tags
	}
	for key, raw := range block {
		switch value := raw.(type) {
		case string:
			tags[key] = value
		case bool, int64, float64:
			tags[key] = fmt.Sprint(value)
		}
	}
	return tags
}

func lineAt(text string, offset int) int {
	return strings.Count(text[:offset], "\n") + 1
}
