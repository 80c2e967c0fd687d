package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// readLines returns trimmed non-empty lines, skipping '#' comments. A missing
// or empty file is an error unless optional is set.
func readLines(path string, optional bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: file not found: %s", ErrInvalid, path)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalid, path, err)
	}
	if len(out) == 0 && !optional {
		return nil, fmt.Errorf("%w: file is empty: %s", ErrInvalid, path)
	}
	return out, nil
}
