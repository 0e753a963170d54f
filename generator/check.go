package generator

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/teranos/opgen/errors"
)

// CheckResult compares a fresh pass with the published artifact.
type CheckResult struct {
	*Result
	Path string
	// UpToDate is true when the file at Path equals the generated source
	UpToDate bool
	// Diff is a line diff from the file on disk to the generated source
	Diff string
}

// Check runs a pass without publishing and compares its output with the
// file at path. A missing file is out of date.
func (g *Generator) Check(ctx context.Context, path string) (*CheckResult, error) {
	res, err := g.Generate(ctx)
	if err != nil {
		return nil, err
	}

	current, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	cr := &CheckResult{Result: res, Path: path, UpToDate: bytes.Equal(current, res.Source)}
	if !cr.UpToDate {
		cr.Diff = LineDiff(string(current), string(res.Source))
	}
	return cr, nil
}

// LineDiff renders a line-oriented diff of from -> to. Removed lines are
// prefixed with "-", added lines with "+", unchanged lines with a space.
func LineDiff(from, to string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" && d.Text == "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
