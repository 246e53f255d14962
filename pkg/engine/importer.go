package engine

import (
	jsonnet "github.com/google/go-jsonnet"
)

// moduleImporter serves the module's own source from memory and hands every
// other import to fallback. A nil fallback makes it a single-file resolver.
type moduleImporter struct {
	identity string
	contents jsonnet.Contents
	fallback jsonnet.Importer
}

func (i *moduleImporter) Import(importedFrom, importedPath string) (jsonnet.Contents, string, error) {
	if importedPath == i.identity {
		return i.contents, i.identity, nil
	}
	if i.fallback == nil {
		return jsonnet.Contents{}, "", &ImportNotFoundError{From: importedFrom, Path: importedPath}
	}
	return i.fallback.Import(importedFrom, importedPath)
}
