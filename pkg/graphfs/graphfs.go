// package graphfs manages the local graph artifact tree written by the
// graph-build collaborator. Layout (fixed, shared with the collaborator):
//
//	{root}/{kbId}/graph_{kbId}_{documentUniqueId}/
//	    graph_{kbId}_{documentUniqueId}.graphml
//	    chunks.json
//	    aggregated.json
//	    multi_hop.json
//	    cot.json
package graphfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	log "github.com/sentra-ai/knowledge-backend/pkg/logger"
)

// companionFiles are the artifact files written next to the GraphML file.
var companionFiles = []string{"chunks.json", "aggregated.json", "multi_hop.json", "cot.json"}

type GraphFSI interface {
	ArtifactDir(kbID, documentUniqueID string) string
	ArtifactPaths(kbID, documentUniqueID string) []string
	DeleteDocumentArtifacts(ctx context.Context, kbID, documentUniqueID string) error
}

type GraphFS struct {
	root string
}

func NewGraphFS(root string) *GraphFS {
	return &GraphFS{root: root}
}

func artifactDirName(kbID, documentUniqueID string) string {
	return fmt.Sprintf("graph_%s_%s", kbID, documentUniqueID)
}

// ArtifactDir returns the directory holding a document's graph artifacts.
func (g *GraphFS) ArtifactDir(kbID, documentUniqueID string) string {
	return filepath.Join(g.root, kbID, artifactDirName(kbID, documentUniqueID))
}

// ArtifactPaths returns the full artifact set for a document: the GraphML
// file plus its companion JSON files.
func (g *GraphFS) ArtifactPaths(kbID, documentUniqueID string) []string {
	dir := g.ArtifactDir(kbID, documentUniqueID)
	paths := []string{filepath.Join(dir, artifactDirName(kbID, documentUniqueID)+".graphml")}
	for _, name := range companionFiles {
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths
}

// DeleteDocumentArtifacts removes the whole artifact directory, companions
// included. A missing directory is not an error.
func (g *GraphFS) DeleteDocumentArtifacts(ctx context.Context, kbID, documentUniqueID string) error {
	logger, _ := log.GetZapLogger(ctx)
	dir := g.ArtifactDir(kbID, documentUniqueID)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("Graph artifact directory does not exist",
			zap.String("dir", dir))
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	logger.Info("Deleted graph artifact directory", zap.String("dir", dir))
	return nil
}
