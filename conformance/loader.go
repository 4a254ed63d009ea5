package conformance

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadedTest pairs one TestCase with the suite it came from and the file it
// was loaded from (for failure messages).
type LoadedTest struct {
	File  string
	Suite TestSuite
	Test  TestCase
}

// LoadDir walks dir for *.yaml fixtures and returns every contained test
// case. A malformed fixture aborts the whole load — fixtures are
// hand-authored and checked in, so a parse failure is a bug worth failing
// loudly on rather than skipping.
func LoadDir(dir string) ([]LoadedTest, error) {
	var out []LoadedTest
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}
		tests, err := loadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, tests...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadFile(path string) ([]LoadedTest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var suite TestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, err
	}
	rel := filepath.Base(path)
	out := make([]LoadedTest, 0, len(suite.Tests))
	for _, tc := range suite.Tests {
		out = append(out, LoadedTest{File: rel, Suite: suite, Test: tc})
	}
	return out, nil
}
