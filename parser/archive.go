package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/stackaudit/stackaudit/types"
)

const (
	maxArchiveEntries   = 100
	maxEntrySize        = 50 * 1024 * 1024
	maxArchiveTotalSize = 100 * 1024 * 1024
)

// parseArchive validates the ZIP safety limits up front, then parses each
// surviving entry independently. Entries are independent of each other, so
// they are parsed in parallel; the aggregate resource order carries no
// meaning. A single failing entry is skipped; an archive that yields zero
// resources overall is invalid input.
func (parserClient *ParserClient) parseArchive(content []byte, fileName string) (*types.ResourceGraph, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &ParseError{FileName: fileName, Format: string(types.FormatZip), Err: err}
	}

	if err := validateArchive(reader); err != nil {
		return nil, err
	}

	entries := []*zip.File{}
	for _, entry := range reader.File {
		if skipArchiveEntry(entry) {
			parserClient.Logger.Debugf("Skipping archive entry %s", entry.Name)
			continue
		}
		entries = append(entries, entry)
	}

	graph := &types.ResourceGraph{Resources: []*types.Resource{}}
	graph.Metadata.ZipContents = []string{}

	var mutex sync.Mutex
	var waitGroup sync.WaitGroup

	for _, entry := range entries {
		waitGroup.Add(1)
		go func(entry *zip.File) {
			defer waitGroup.Done()

			entryGraph, err := parserClient.parseArchiveEntry(entry)
			if err != nil {
				parserClient.Logger.Warnf("Skipping archive entry %s: %v", entry.Name, err)
				return
			}

			mutex.Lock()
			defer mutex.Unlock()
			graph.Metadata.ZipContents = append(graph.Metadata.ZipContents, entry.Name)
			graph.Resources = append(graph.Resources, entryGraph.Resources...)
		}(entry)
	}
	waitGroup.Wait()

	if len(graph.Resources) == 0 {
		return nil, &ParseError{
			FileName: fileName,
			Format:   string(types.FormatZip),
			Err:      fmt.Errorf("archive yielded no resources"),
		}
	}

	sort.Strings(graph.Metadata.ZipContents)
	graph.Metadata.FileName = fileName
	graph.Metadata.FileType = types.FormatZip
	graph.Finalize()
	parserClient.Logger.Infof("Parsed %d resources from %d archive entries in %s",
		graph.Metadata.ResourceCount, len(graph.Metadata.ZipContents), fileName)
	return graph, nil
}

// validateArchive enforces the safety limits before any entry content is
// touched. Path traversal is a security invariant: any entry escaping the
// archive root rejects the whole archive.
func validateArchive(reader *zip.Reader) error {
	if len(reader.File) > maxArchiveEntries {
		return &SafetyError{Reason: fmt.Sprintf("archive has %d entries, limit is %d", len(reader.File), maxArchiveEntries)}
	}

	var totalSize uint64
	for _, entry := range reader.File {
		if strings.HasPrefix(entry.Name, "/") || containsTraversal(entry.Name) {
			return &SafetyError{Entry: entry.Name, Reason: "path escapes archive root"}
		}
		if entry.UncompressedSize64 > maxEntrySize {
			return &SafetyError{Entry: entry.Name, Reason: fmt.Sprintf("uncompressed size %d exceeds limit %d", entry.UncompressedSize64, maxEntrySize)}
		}
		totalSize += entry.UncompressedSize64
	}
	if totalSize > maxArchiveTotalSize {
		return &SafetyError{Reason: fmt.Sprintf("total uncompressed size %d exceeds limit %d", totalSize, maxArchiveTotalSize)}
	}
	return nil
}

func containsTraversal(name string) bool {
	for _, segment := range strings.Split(strings.ReplaceAll(name, "\\", "/"), "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

func skipArchiveEntry(entry *zip.File) bool {
	if entry.FileInfo().IsDir() {
		return true
	}
	name := strings.ReplaceAll(entry.Name, "\\", "/")
	if strings.HasPrefix(name, "__MACOSX") || strings.Contains(name, "/__MACOSX") {
		return true
	}
	base := path.Base(name)
	return strings.HasPrefix(base, ".")
}

func (parserClient *ParserClient) parseArchiveEntry(entry *zip.File) (*types.ResourceGraph, error) {
	file, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("opening entry: %w", err)
	}
	defer file.Close()

	// The declared size was validated, but the actual stream is still
	// capped in case the header lies.
	content, err := io.ReadAll(io.LimitReader(file, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading entry: %w", err)
	}
	if len(content) > maxEntrySize {
		return nil, &SafetyError{Entry: entry.Name, Reason: "entry larger than declared size"}
	}

	format := DetectFormat(entry.Name, content, types.FormatAuto)
	entryGraph, err := parserClient.parseSingle(content, entry.Name, format)
	if err != nil {
		return nil, err
	}

	for _, resource := range entryGraph.Resources {
		resource.Location.ZipEntry = entry.Name
	}
	return entryGraph, nil
}
