package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stackaudit/stackaudit/types"
)

// CDK source is TypeScript or JavaScript and effectively unparseable
// without a full AST, so this path is best effort by contract: an import
// scan records which symbols demonstrably come from the CDK packages, then
// construct instantiations gated on those symbols are mapped to
// CloudFormation resource types. Whatever was extracted before a failure is
// returned; the CDK path never hard-fails.

var namedImportPattern = regexp.MustCompile(`import\s*\{([^}]*)\}\s*from\s*['"]((?:aws-cdk-lib|@aws-cdk/)[^'"]*)['"]`)
var namespaceImportPattern = regexp.MustCompile(`import\s*\*\s*as\s+([A-Za-z_$][\w$]*)\s+from\s*['"]((?:aws-cdk-lib|@aws-cdk/)[^'"]*)['"]`)
var requirePattern = regexp.MustCompile(`(?:const|var|let)\s+([A-Za-z_$][\w$]*)\s*=\s*require\(\s*['"]((?:aws-cdk-lib|@aws-cdk/)[^'"]*)['"]\s*\)`)
var constructCallPattern = regexp.MustCompile(`new\s+([A-Za-z_$][\w$]*)(?:\.([A-Za-z_$][\w$]*))*\s*\(`)

// wellKnownConstructs maps CDK construct names to their CloudFormation
// resource-type equivalents. Constructs outside the table become a
// synthetic CDK::<Construct> type.
var wellKnownConstructs = map[string]string{
	"Bucket":        "AWS::S3::Bucket",
	"Function":      "AWS::Lambda::Function",
	"Table":         "AWS::DynamoDB::Table",
	"Queue":         "AWS::SQS::Queue",
	"Topic":         "AWS::SNS::Topic",
	"Vpc":           "AWS::EC2::VPC",
	"Instance":      "AWS::EC2::Instance",
	"SecurityGroup": "AWS::EC2::SecurityGroup",
	"Role":          "AWS::IAM::Role",
	"User":          "AWS::IAM::User",
	"Cluster":       "AWS::ECS::Cluster",
	"RestApi":       "AWS::ApiGateway::RestApi",
	"UserPool":      "AWS::Cognito::UserPool",
	"Distribution":  "AWS::CloudFront::Distribution",
	"StateMachine":  "AWS::StepFunctions::StateMachine",
	"LogGroup":      "AWS::Logs::LogGroup",
	"Secret":        "AWS::SecretsManager::Secret",
	"Key":           "AWS::KMS::Key",
	"Stack":         "AWS::CloudFormation::Stack",
	"Alarm":         "AWS::CloudWatch::Alarm",
}

func (parserClient *ParserClient) parseCDK(content []byte, fileName string) (graph *types.ResourceGraph, err error) {
	graph = &types.ResourceGraph{Resources: []*types.Resource{}}

	defer func() {
		if recovered := recover(); recovered != nil {
			parserClient.Logger.Warnf("CDK parsing aborted for %s, keeping %d extracted resources: %v",
				fileName, len(graph.Resources), recovered)
			err = nil
		}
	}()

	text := string(content)
	symbols, namespaces := scanCDKImports(text)

	for index, match := range constructCallPattern.FindAllStringSubmatchIndex(text, -1) {
		head := text[match[2]:match[3]]
		callText := text[match[0]:match[1]]
		construct := lastIdentifier(callText)

		fromCDK := false
		if strings.Contains(callText, ".") {
			fromCDK = namespaces[head]
		} else {
			fromCDK = symbols[construct]
		}
		if !fromCDK {
			continue
		}

		resourceType, known := wellKnownConstructs[construct]
		if !known {
			resourceType = fmt.Sprintf("CDK::%s", construct)
		}

		openParen := match[1] - 1
		arguments := scanCallArguments(text, openParen)
		name := constructID(arguments)
		if name == "" {
			name = fmt.Sprintf("%s_%d", construct, index+1)
		}

		properties := map[string]any{"construct": construct}
		if len(arguments) >= 3 {
			properties["props"] = strings.TrimSpace(arguments[2])
		}

		resource := &types.Resource{
			Type:         resourceType,
			Name:         name,
			Properties:   properties,
			Metadata:     map[string]any{"construct": construct, "known": known},
			Dependencies: []string{},
			Tags:         map[string]string{},
			Location: types.SourceLocation{
				File:  fileName,
				Line:  lineAt(text, match[0]),
				Block: construct,
			},
		}
		graph.Resources = append(graph.Resources, resource)
	}

	return graph, nil
}

// scanCDKImports returns the construct symbols and namespace aliases that
// were imported from aws-cdk-lib or an @aws-cdk/* package.
func scanCDKImports(text string) (map[string]bool, map[string]bool) {
	symbols := map[string]bool{}
	namespaces := map[string]bool{}

	for _, match := range namedImportPattern.FindAllStringSubmatch(text, -1) {
		for _, entry := range strings.Split(match[1], ",") {
			name := strings.TrimSpace(entry)
			if name == "" {
				continue
			}
			// "Bucket as StorageBucket" binds the alias.
			if parts := strings.Fields(name); len(parts) == 3 && parts[1] == "as" {
				name = parts[2]
			}
			symbols[name] = true
		}
	}

	for _, match := range namespaceImportPattern.FindAllStringSubmatch(text, -1) {
		namespaces[match[1]] = true
	}
	for _, match := range requirePattern.FindAllStringSubmatch(text, -1) {
		namespaces[match[1]] = true
	}

	return symbols, namespaces
}

func lastIdentifier(callText string) string {
	inner := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(callText), "new"))
	inner = strings.TrimSuffix(strings.TrimSpace(inner), "(")
	inner = strings.TrimSpace(inner)
	if dot := strings.LastIndex(inner, "."); dot >= 0 {
		inner = inner[dot+1:]
	}
	return inner
}

// scanCallArguments splits the argument list of a call site at top-level
// commas, honoring nested parens, braces, brackets and strings.
func scanCallArguments(text string, openParen int) []string {
	if openParen < 0 || openParen >= len(text) || text[openParen] != '(' {
		return nil
	}

	arguments := []string{}
	depth := 0
	var inString byte
	argStart := openParen + 1

	for position := openParen; position < len(text); position++ {
		character := text[position]

		if inString != 0 {
			if character == '\\' {
				position++
			} else if character == inString {
				inString = 0
			}
			continue
		}

		switch character {
		case '\'', '"', '`':
			inString = character
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
			if depth == 0 {
				arguments = append(arguments, text[argStart:position])
				return arguments
			}
		case ',':
			if depth == 1 {
				arguments = append(arguments, text[argStart:position])
				argStart = position + 1
			}
		}
	}

	return arguments
}

// constructID pulls the string-literal id (second constructor argument)
// when present.
func constructID(arguments []string) string {
	if len(arguments) < 2 {
		return ""
	}
	id := strings.TrimSpace(arguments[1])
	if len(id) >= 2 {
		first := id[0]
		last := id[len(id)-1]
		if (first == '\'' || first == '"' || first == '`') && first == last {
			return id[1 : len(id)-1]
		}
	}
	return ""
}
