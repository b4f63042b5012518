package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stackaudit/stackaudit/types"
)

func TestParseTerraform_SingleResource(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
resource "aws_s3_bucket" "assets" {
  bucket        = "assets-bucket"
  force_destroy = true
  max_versions  = 5

  tags = {
    team    = "platform"
    tier    = 1
    managed = true
  }
}
`)

	graph, err := parserClient.Parse(content, "main.tf", types.FormatAuto)

	assert.NoError(t, err)
	assert.Equal(t, 1, graph.Metadata.ResourceCount)

	bucket := graph.Resources[0]
	assert.Equal(t, "aws_s3_bucket", bucket.Type)
	assert.Equal(t, "aws_s3_bucket.assets", bucket.Name)
	assert.Equal(t, "assets-bucket", bucket.Properties["bucket"])
	assert.Equal(t, true, bucket.Properties["force_destroy"])
	assert.Equal(t, int64(5), bucket.Properties["max_versions"])
	assert.Equal(t, map[string]string{"team": "platform", "tier": "1", "managed": "true"}, bucket.Tags)
	assert.Equal(t, 2, bucket.Location.Line)
	assert.Equal(t, "aws_s3_bucket.assets", bucket.Location.Block)
}

func TestParseTerraform_ExplicitAndImplicitDependencies(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
resource "aws_s3_bucket" "logs" {
  bucket = "log-bucket"
}

resource "aws_instance" "web" {
  ami           = var.ami_id
  subnet_id     = aws_subnet.main.id
  depends_on    = ["aws_s3_bucket.logs"]
  log_target    = aws_s3_bucket.logs
}
`)

	graph, err := parserClient.Parse(content, "main.tf", types.FormatAuto)

	assert.NoError(t, err)
	byName := indexResources(graph)
	web := byName["aws_instance.web"]

	// The explicit dependency comes first; the implicit subnet reference is
	// appended; the duplicate logs reference and the var.* reference are not.
	assert.Equal(t, []string{"aws_s3_bucket.logs", "aws_subnet.main"}, web.Dependencies)
}

func TestParseTerraform_ReservedPrefixesFiltered(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
resource "aws_lambda_function" "worker" {
  runtime  = var.runtime
  source   = local.source_path
  module   = module.shared.output
  count    = count.index
  data_ref = data.aws_ami.latest
  self_ref = self.arn
}
`)

	graph, err := parserClient.Parse(content, "main.tf", types.FormatAuto)

	assert.NoError(t, err)
	assert.Empty(t, graph.Resources[0].Dependencies)
}

func TestParseTerraform_NestedBlocks(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
resource "aws_s3_bucket" "secure" {
  bucket = "secure-bucket"

  server_side_encryption_configuration {
    rule {
      sse_algorithm = "aws:kms"
    }
  }

  lifecycle_rules = ["expire-old", "abort-multipart"]
}
`)

	graph, err := parserClient.Parse(content, "main.tf", types.FormatAuto)

	assert.NoError(t, err)
	secure := graph.Resources[0]

	encryption, ok := secure.Properties["server_side_encryption_configuration"].(map[string]any)
	assert.True(t, ok)
	rule, ok := encryption["rule"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "aws:kms", rule["sse_algorithm"])

	assert.Equal(t, []any{"expire-old", "abort-multipart"}, secure.Properties["lifecycle_rules"])
}

func TestParseTerraform_CommentsAndStringsDoNotBreakScanning(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
# leading comment with a brace {
resource "aws_sqs_queue" "jobs" {
  // inline comment }
  name    = "jobs-{env}"
  /* block
     comment } */
  policy  = "{\"Version\":\"2012-10-17\"}"
}

resource "aws_sns_topic" "events" {
  name = "events"
}
`)

	graph, err := parserClient.Parse(content, "main.tf", types.FormatAuto)

	assert.NoError(t, err)
	assert.Equal(t, 2, graph.Metadata.ResourceCount)
	byName := indexResources(graph)
	assert.Equal(t, "jobs-{env}", byName["aws_sqs_queue.jobs"].Properties["name"])
}

func TestParseTerraform_UnbalancedBlockSkipped(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
resource "aws_s3_bucket" "good" {
  bucket = "fine"
}

resource "aws_s3_bucket" "broken" {
  bucket = "never closed"
`)

	graph, err := parserClient.Parse(content, "main.tf", types.FormatAuto)

	assert.NoError(t, err)
	assert.Equal(t, 1, graph.Metadata.ResourceCount)
	assert.Equal(t, "aws_s3_bucket.good", graph.Resources[0].Name)
}

func TestParseTerraform_EveryBlockUnscannableFails(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
resource "aws_s3_bucket" "first" {
  bucket = "never closed"

resource "aws_s3_bucket" "second" {
  bucket = "also never closed"
`)

	graph, err := parserClient.Parse(content, "main.tf", types.FormatAuto)

	assert.Nil(t, graph)
	var parseError *ParseError
	assert.ErrorAs(t, err, &parseError)
	assert.Equal(t, "main.tf", parseError.FileName)
}

func TestParseTerraform_NoResourcesYieldsEmptyGraph(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
variable "region" {
  default = "us-east-1"
}
`)

	graph, err := parserClient.Parse(content, "variables.tf", types.FormatAuto)

	assert.NoError(t, err)
	assert.Equal(t, 0, graph.Metadata.ResourceCount)
}

func TestParseTfvars_VariablesIntoMetadata(t *testing.T) {
	parserClient := NewParserClient(newTestLogger())
	content := []byte(`
region         = "eu-west-1"
instance_count = 3
enable_logging = true
azs            = ["a", "b"]
limits = {
  cpu = 2
}
`)

	graph, err := parserClient.Parse(content, "prod.tfvars", types.FormatAuto)

	assert.NoError(t, err)
	assert.Empty(t, graph.Resources)
	assert.Equal(t, "eu-west-1", graph.Metadata.Variables["region"])
	assert.Equal(t, float64(3), graph.Metadata.Variables["instance_count"])
	assert.Equal(t, true, graph.Metadata.Variables["enable_logging"])
	assert.Equal(t, []any{"a", "b"}, graph.Metadata.Variables["azs"])
	assert.Equal(t, map[string]any{"cpu": float64(2)}, graph.Metadata.Variables["limits"])
}
