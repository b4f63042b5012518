package parser

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stackaudit/stackaudit/types"
)

type IParserClient interface {
	Parse(content []byte, fileName string, hint types.Format) (*types.ResourceGraph, error)
}

// ParserClient converts raw IaC source (or a ZIP bundle of sources) into a
// normalized ResourceGraph. Every Parse call builds a fresh graph; the
// client holds no per-parse state and is safe for concurrent use.
type ParserClient struct {
	Logger *logrus.Logger
}

func NewParserClient(logger *logrus.Logger) *ParserClient {
	return &ParserClient{
		Logger: logger,
	}
}

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

func (parserClient *ParserClient) Parse(content []byte, fileName string, hint types.Format) (*types.ResourceGraph, error) {
	if hint == types.FormatZip || isZipArchive(fileName, content) {
		return parserClient.parseArchive(content, fileName)
	}

	format := DetectFormat(fileName, content, hint)
	parserClient.Logger.Debugf("Detected format %s for file %s", format, fileName)
	return parserClient.parseSingle(content, fileName, format)
}

func (parserClient *ParserClient) parseSingle(content []byte, fileName string, format types.Format) (*types.ResourceGraph, error) {
	var graph *types.ResourceGraph
	var err error

	switch format {
	case types.FormatTerraform:
		if strings.HasSuffix(strings.ToLower(fileName), ".tfvars") {
			graph, err = parserClient.parseTfvars(content, fileName)
		} else {
			graph, err = parserClient.parseTerraform(content, fileName)
		}
	case types.FormatCDK:
		graph, err = parserClient.parseCDK(content, fileName)
	default:
		graph, err = parserClient.parseCloudFormation(content, fileName)
	}

	if err != nil {
		return nil, err
	}

	graph.Metadata.FileName = fileName
	graph.Metadata.FileType = format
	graph.Finalize()
	parserClient.Logger.Infof("Parsed %d resources from %s", graph.Metadata.ResourceCount, fileName)
	return graph, nil
}

func isZipArchive(fileName string, content []byte) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".zip") {
		return true
	}
	return bytes.HasPrefix(content, zipMagic)
}
