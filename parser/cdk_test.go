package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stackaudit/stackaudit/types"
)

func TestParseCDK_NamedImports(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
import { Bucket, Queue } from 'aws-cdk-lib/aws-s3';

const assets = new Bucket(this, 'AssetsBucket', { versioned: true });
const jobs = new Queue(this, 'JobQueue');
`)

	graph, err := parserClient.Parse(content, "stack.ts", types.FormatAuto)

	assert.NoError(t, err)
	assert.Equal(t, 2, graph.Metadata.ResourceCount)

	byName := indexResources(graph)
	bucket := byName["AssetsBucket"]
	assert.Equal(t, "AWS::S3::Bucket", bucket.Type)
	assert.Equal(t, "Bucket", bucket.Metadata["construct"])
	assert.Equal(t, true, bucket.Metadata["known"])
	assert.Equal(t, "{ versioned: true }", bucket.Properties["props"])

	queue := byName["JobQueue"]
	assert.Equal(t, "AWS::SQS::Queue", queue.Type)
}

func TestParseCDK_NamespaceImport(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
import * as s3 from 'aws-cdk-lib/aws-s3';

new s3.Bucket(this, 'Primary');
`)

	graph, err := parserClient.Parse(content, "stack.ts", types.FormatAuto)

	assert.NoError(t, err)
	assert.Equal(t, 1, graph.Metadata.ResourceCount)
	assert.Equal(t, "AWS::S3::Bucket", graph.Resources[0].Type)
	assert.Equal(t, "Primary", graph.Resources[0].Name)
}

func TestParseCDK_RequireImport(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
const cdk = require('aws-cdk-lib');

new cdk.Stack(app, 'RootStack');
`)

	graph, err := parserClient.Parse(content, "stack.js", types.FormatAuto)

	assert.NoError(t, err)
	assert.Equal(t, 1, graph.Metadata.ResourceCount)
	assert.Equal(t, "AWS::CloudFormation::Stack", graph.Resources[0].Type)
}

func TestParseCDK_ImportAlias(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
import { Bucket as StorageBucket } from 'aws-cdk-lib/aws-s3';

new StorageBucket(this, 'Aliased');
`)

	graph, err := parserClient.Parse(content, "stack.ts", types.FormatAuto)

	assert.NoError(t, err)
	assert.Equal(t, 1, graph.Metadata.ResourceCount)
	// The alias is not in the construct table, so the synthetic type is used.
	assert.Equal(t, "CDK::StorageBucket", graph.Resources[0].Type)
}

func TestParseCDK_ConstructsWithoutCDKImportIgnored(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
import { Bucket } from 'some-other-library';
import { Queue } from 'aws-cdk-lib/aws-sqs';

new Bucket(this, 'NotCDK');
new Queue(this, 'IsCDK');
new Date();
`)

	graph, err := parserClient.Parse(content, "stack.ts", types.FormatAuto)

	assert.NoError(t, err)
	assert.Equal(t, 1, graph.Metadata.ResourceCount)
	assert.Equal(t, "IsCDK", graph.Resources[0].Name)
}

func TestParseCDK_UnknownConstructGetsSyntheticType(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
import { HostedZone } from 'aws-cdk-lib/aws-route53';

new HostedZone(this, 'Zone');
`)

	graph, err := parserClient.Parse(content, "stack.ts", types.FormatAuto)

	assert.NoError(t, err)
	assert.Equal(t, "CDK::HostedZone", graph.Resources[0].Type)
	assert.Equal(t, false, graph.Resources[0].Metadata["known"])
}

func TestParseCDK_SynthesizedNameWithoutIDArgument(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
import { Vpc } from 'aws-cdk-lib/aws-ec2';

new Vpc(this);
`)

	graph, err := parserClient.Parse(content, "stack.ts", types.FormatAuto)

	assert.NoError(t, err)
	assert.Equal(t, 1, graph.Metadata.ResourceCount)
	assert.Equal(t, "Vpc_1", graph.Resources[0].Name)
}

func TestParseCDK_NoImportsYieldsEmptyGraph(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
import { aws_cdk } from 'aws-cdk-lib';
const x = computeSomething();
`)

	graph, err := parserClient.Parse(content, "app.ts", types.FormatCDK)

	assert.NoError(t, err)
	assert.Equal(t, 0, graph.Metadata.ResourceCount)
}

func TestScanCallArguments(t *testing.T) {
	text := `new Bucket(this, 'Assets', { nested: fn(1, 2), list: [1, 2] })`
	openParen := len("new Bucket")

	arguments := scanCallArguments(text, openParen)

	assert.Len(t, arguments, 3)
	assert.Equal(t, "this", arguments[0])
	assert.Equal(t, " 'Assets'", arguments[1])
	assert.Equal(t, " { nested: fn(1, 2), list: [1, 2] }", arguments[2])
}

func TestConstructID(t *testing.T) {
	assert.Equal(t, "MyID", constructID([]string{"this", ` "MyID" `}))
	assert.Equal(t, "MyID", constructID([]string{"this", " 'MyID' "}))
	assert.Equal(t, "", constructID([]string{"this", " someVariable "}))
	assert.Equal(t, "", constructID([]string{"this"}))
}
