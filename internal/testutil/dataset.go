// Package testutil builds on-disk dataset fixtures for tests.
package testutil

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// Artifact describes one snapshot directory of a fixture tree.
type Artifact struct {
	Platform     string
	GraphType    string
	Date         string
	Interactions string
	// Metadata is written to instances.csv when non-empty.
	Metadata string
}

const (
	PeertubeOld = "Source,Target,Weight\n" +
		"a.tube,b.tube,1\n" +
		"b.tube,c.tube,2\n"
	PeertubeNew = "Source,Target,Weight\n" +
		"a.tube,b.tube,4\n" +
		"b.tube,c.tube,1\n" +
		"c.tube,d.tube,0.5\n"
	PeertubeNewMeta = "host,software_version,users\n" +
		"a.tube,6.0.2,120\n" +
		"b.tube,5.2.1,8\n" +
		"c.tube,6.1.0,3400\n" +
		"e.tube,6.0.0,1\n"
	LemmyFederation = "Source,Target,Weight\n" +
		"lemmy.ml,beehaw.org,10\n"
)

// Artifacts is the default fixture: two peertube/follow snapshots and two
// lemmy graph types.
func Artifacts() []Artifact {
	return []Artifact{
		{Platform: "peertube", GraphType: "follow", Date: "20250101", Interactions: PeertubeOld},
		{Platform: "peertube", GraphType: "follow", Date: "20250324", Interactions: PeertubeNew, Metadata: PeertubeNewMeta},
		{Platform: "lemmy", GraphType: "federation", Date: "20250210", Interactions: LemmyFederation},
		{Platform: "lemmy", GraphType: "cross_instance", Date: "20241115", Interactions: LemmyFederation},
	}
}

// WriteArtifact writes a into the tree rooted at root.
func WriteArtifact(t *testing.T, root string, a Artifact) string {
	t.Helper()

	dir := filepath.Join(root, a.Platform, a.GraphType, a.Date)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "interactions.csv"), []byte(a.Interactions), 0o644))
	if a.Metadata != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "instances.csv"), []byte(a.Metadata), 0o644))
	}
	return dir
}

// Dataset writes the given artifacts (Artifacts() when none are passed) into
// a fresh temporary directory and returns its path.
func Dataset(t *testing.T, artifacts ...Artifact) string {
	t.Helper()

	if len(artifacts) == 0 {
		artifacts = Artifacts()
	}
	root := t.TempDir()
	for _, a := range artifacts {
		WriteArtifact(t, root, a)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("Fediverse graph dataset\n"), 0o644))
	return root
}

// ZipTree archives every regular file under root, with paths relative to
// root prefixed by prefix.
func ZipTree(t *testing.T, root, prefix string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(prefix + filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
