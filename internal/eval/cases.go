package eval

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fredqa/internal/model"
)

// maxCaseLine bounds a single JSONL line.
const maxCaseLine = 1 << 20

// ReadCases decodes one case per non-blank line.
func ReadCases(r io.Reader) ([]model.Case, error) {
	var cases []model.Case
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxCaseLine)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var c model.Case
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, eris.Wrapf(err, "eval: decode case on line %d", line)
		}
		if c.ID == "" {
			return nil, eris.Errorf("eval: case on line %d has no id", line)
		}
		cases = append(cases, c)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "eval: read cases")
	}
	return cases, nil
}

// LoadCases reads and concatenates JSONL case files in order.
func LoadCases(paths ...string) ([]model.Case, error) {
	var all []model.Case
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, eris.Wrapf(err, "eval: open %s", p)
		}
		cases, err := ReadCases(f)
		f.Close() //nolint:errcheck
		if err != nil {
			return nil, eris.Wrapf(err, "eval: load %s", p)
		}
		all = append(all, cases...)
	}
	return all, nil
}

// WriteCases encodes one case per line.
func WriteCases(w io.Writer, cases []model.Case) error {
	enc := json.NewEncoder(w)
	for _, c := range cases {
		if err := enc.Encode(c); err != nil {
			return eris.Wrapf(err, "eval: encode case %s", c.ID)
		}
	}
	return nil
}

// SaveCases writes cases to path as JSONL, creating parent directories.
func SaveCases(path string, cases []model.Case) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "eval: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "eval: create %s", path)
	}
	if err := WriteCases(f, cases); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "eval: close %s", path)
}
