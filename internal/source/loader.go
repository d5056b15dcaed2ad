package source

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/shepherrrd/migrasafe/internal/parser"
)

// Extension is the file extension treated as a migration.
const Extension = ".sql"

// Load reads every .sql file under fsys, sorted by path. It does not parse
// them; that is the parser's job.
func Load(fsys fs.FS) ([]parser.Source, error) {
	var sources []parser.Source

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(path.Ext(p), Extension) {
			return nil
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", p, err)
		}
		sources = append(sources, parser.Source{Filename: p, Content: string(content)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Filename < sources[j].Filename
	})
	return sources, nil
}
