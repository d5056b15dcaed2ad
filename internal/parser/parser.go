package parser

import (
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/shepherrrd/migrasafe/internal/models"
)

var (
	ErrInvalidFilename   = errors.New("invalid migration filename")
	ErrDuplicateSequence = errors.New("duplicate migration sequence number")
)

// Source is a migration file already read into memory.
type Source struct {
	Filename string
	Content  string
}

var (
	sequencePrefix = regexp.MustCompile(`^(\d+)_`)
	wellFormedName = regexp.MustCompile(`^\d+_[a-z][a-z0-9_]*\.[A-Za-z0-9]+$`)
	reverseMarker  = regexp.MustCompile(`(?i)^--\s*(down|rollback)$`)
)

// Parse builds a Migration from a file name like 001_create_users.sql and its
// content. The content is split on a standalone "-- DOWN" or "-- ROLLBACK"
// line: the text before the first marker is the forward script and the text
// after the last marker is the reverse script.
func Parse(filename, content string) (models.Migration, error) {
	base := filepath.Base(filename)

	m := sequencePrefix.FindStringSubmatch(base)
	if m == nil {
		return models.Migration{}, fmt.Errorf("%w: %q has no NNN_ sequence prefix", ErrInvalidFilename, base)
	}
	seq, err := strconv.Atoi(m[1])
	if err != nil || seq <= 0 {
		return models.Migration{}, fmt.Errorf("%w: %q has an unusable sequence number %q", ErrInvalidFilename, base, m[1])
	}

	rest := base[len(m[0]):]
	name := strings.TrimSuffix(rest, filepath.Ext(rest))
	if name == "" {
		return models.Migration{}, fmt.Errorf("%w: %q has no name after the sequence number", ErrInvalidFilename, base)
	}

	forward, reverse := splitScripts(content)

	return models.Migration{
		SequenceNumber: seq,
		Name:           name,
		Filename:       base,
		ForwardScript:  forward,
		ReverseScript:  reverse,
		Checksum:       GenerateChecksum(forward),
	}, nil
}

// ParseAll parses every source and returns the migrations sorted by sequence
// number. All malformed files and duplicate sequence numbers are reported
// together.
func ParseAll(sources []Source) ([]models.Migration, error) {
	var result *multierror.Error
	seen := make(map[int]string, len(sources))
	migrations := make([]models.Migration, 0, len(sources))

	for _, src := range sources {
		mig, err := Parse(src.Filename, src.Content)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if prev, exists := seen[mig.SequenceNumber]; exists {
			result = multierror.Append(result, fmt.Errorf("%w: %d is used by %s and %s", ErrDuplicateSequence, mig.SequenceNumber, prev, mig.Filename))
			continue
		}
		seen[mig.SequenceNumber] = mig.Filename
		migrations = append(migrations, mig)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].SequenceNumber < migrations[j].SequenceNumber
	})
	return migrations, nil
}

// ValidateMigrationName checks a file name against NNN_snake_case_name.ext.
func ValidateMigrationName(filename string) error {
	base := filepath.Base(filename)
	if !wellFormedName.MatchString(base) {
		return fmt.Errorf("%w: %q must look like 001_snake_case_name.sql", ErrInvalidFilename, base)
	}
	return nil
}

// GenerateChecksum hashes script with FNV-1a after collapsing whitespace, and
// renders it as 16 lowercase hex digits.
func GenerateChecksum(script string) string {
	normalized := strings.Join(strings.Fields(script), " ")

	h := fnv.New64a()
	h.Write([]byte(normalized))
	return fmt.Sprintf("%016x", h.Sum64())
}

func splitScripts(content string) (forward, reverse string) {
	lines := strings.Split(content, "\n")

	first, last := -1, -1
	for i, line := range lines {
		if reverseMarker.MatchString(strings.TrimSpace(line)) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	if first < 0 {
		return strings.TrimSpace(content), ""
	}
	forward = strings.TrimSpace(strings.Join(lines[:first], "\n"))
	reverse = strings.TrimSpace(strings.Join(lines[last+1:], "\n"))
	return forward, reverse
}
