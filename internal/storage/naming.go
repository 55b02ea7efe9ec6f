package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/zeebo/xxh3"
)

// ArtifactName derives the intermediate file name for an input URI. The
// base name keeps artifacts recognizable; the hash suffix keeps inputs with
// the same base name in different directories apart.
func ArtifactName(uri string) string {
	base := path.Base(strings.ReplaceAll(uri, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	return fmt.Sprintf("%s_%08x_pivoted.parquet", base, uint32(xxh3.HashString(uri)))
}

// ArtifactKey returns the store key of the intermediate artifact for uri.
func ArtifactKey(uri string) string {
	return IntermediatePrefix + ArtifactName(uri)
}
