package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"quizbot/internal/domain"
)

var roundFile = regexp.MustCompile(`^round_(\d+)\.(ya?ml|json)$`)

// RoundLoader reads rounds from round_<n>.yaml|yml|json files in a directory.
// JSON files decode through the same YAML parser.
type RoundLoader struct {
	dir string
}

func NewRoundLoader(dir string) *RoundLoader {
	return &RoundLoader{dir: dir}
}

func (l *RoundLoader) LoadRound(_ context.Context, number int) (domain.Round, error) {
	paths, err := l.scan()
	if err != nil {
		return domain.Round{}, err
	}
	path, ok := paths[number]
	if !ok {
		return domain.Round{}, fmt.Errorf("%w: round %d in %s", domain.ErrRoundNotFound, number, l.dir)
	}
	return ReadRound(path, number)
}

// CountRounds returns how many rounds are available, counting round_1 upward until the first gap.
func (l *RoundLoader) CountRounds(context.Context) (int, error) {
	paths, err := l.scan()
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		if _, ok := paths[n+1]; !ok {
			return n, nil
		}
		n++
	}
}

// Paths returns every round file keyed by round number.
func (l *RoundLoader) Paths() (map[int]string, error) {
	return l.scan()
}

func (l *RoundLoader) scan() (map[int]string, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[int]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rounds dir: %w", err)
	}
	paths := make(map[int]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := roundFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		if _, dup := paths[n]; !dup {
			paths[n] = filepath.Join(l.dir, e.Name())
		}
	}
	return paths, nil
}

// ReadRound decodes and validates a single round file.
func ReadRound(path string, number int) (domain.Round, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Round{}, err
	}
	var round domain.Round
	if err := yaml.Unmarshal(data, &round); err != nil {
		return domain.Round{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	round.Number = number
	if err := round.Validate(); err != nil {
		return domain.Round{}, err
	}
	return round, nil
}
