// Package domains loads the list of targets the lookup runner works through.
package domains

import (
	"fmt"
	"strings"

	"techlookup/pkg/serrors"

	"github.com/spf13/afero"
)

// Scheme is prepended to entries that do not already carry it.
const Scheme = "https://"

// Options tune how a domain file is read.
type Options struct {
	// SkipBlank drops empty lines instead of turning them into a bare scheme.
	SkipBlank bool
}

// Normalize returns entry with an https scheme. Entries starting with "https"
// are returned unchanged; everything else, including plain "http://" URLs, is
// prefixed.
func Normalize(entry string) string {
	if strings.HasPrefix(entry, "https") {
		return entry
	}

	return Scheme + entry
}

// Load reads the newline delimited domain list at path. The order of the file
// is kept and duplicates are not removed. A missing path or a path that is not
// a regular file yields serrors.ErrNotFound.
func Load(fs afero.Fs, path string, opts Options) ([]string, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrNotFound, err, "missing domain file %q", path)
	}
	if !info.Mode().IsRegular() {
		return nil, serrors.With(serrors.ErrNotFound, "domain file %q is not a regular file", path)
	}

	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("could not read domain file: %w", err)
	}

	content := strings.TrimSuffix(string(b), "\n")
	if content == "" {
		return []string{}, nil
	}

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if opts.SkipBlank && strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, Normalize(line))
	}

	return out, nil
}
