package projects

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ListWorkspaceFiles enumerates every file under root as workspace-relative
// slash-separated paths. Dot-directories and node_modules are skipped; the
// remote store records sources, not dependency trees.
func ListWorkspaceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "[ListWorkspaceFiles] walk %s", root)
	}
	return files, nil
}
