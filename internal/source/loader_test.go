package source

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_email.sql":      {Data: []byte("ALTER TABLE users ADD COLUMN email text;")},
		"001_create_users.sql":   {Data: []byte("CREATE TABLE users (id int);")},
		"README.md":              {Data: []byte("# migrations")},
		"archive/000_legacy.SQL": {Data: []byte("SELECT 1;")},
		"archive/notes.txt":      {Data: []byte("ignore me")},
	}

	sources, err := Load(fsys)
	require.NoError(t, err)

	var names []string
	for _, src := range sources {
		names = append(names, src.Filename)
	}
	assert.Equal(t, []string{"001_create_users.sql", "002_add_email.sql", "archive/000_legacy.SQL"}, names)
	assert.Equal(t, "CREATE TABLE users (id int);", sources[0].Content)
}

func TestLoad_Empty(t *testing.T) {
	sources, err := Load(fstest.MapFS{})
	require.NoError(t, err)
	assert.Empty(t, sources)
}
