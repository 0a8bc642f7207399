package magic

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"
)

// Loader reads signature databases from YAML.
type Loader struct {
	fs fs.FS
}

// NewLoader creates a loader backed by the built-in signature database.
func NewLoader() *Loader {
	return &Loader{fs: builtinSignaturesFS}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{fs: fsys}
}

// Load parses signatures from YAML bytes.
func (l *Loader) Load(data []byte) ([]*Signature, error) {
	var file yamlSignatureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	sigs := make([]*Signature, 0, len(file.Signatures))
	for _, ys := range file.Signatures {
		sig, err := compileSignature(ys)
		if err != nil {
			return nil, fmt.Errorf("signature %q: %w", ys.Name, err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// LoadFile parses signatures from a YAML file path.
func (l *Loader) LoadFile(path string) ([]*Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.Load(data)
}

// LoadBuiltin loads the embedded signature database.
func (l *Loader) LoadBuiltin() ([]*Signature, error) {
	var sigs []*Signature
	err := fs.WalkDir(l.fs, "signatures", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yml" {
			return nil
		}
		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		loaded, err := l.Load(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		sigs = append(sigs, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sigs, nil
}

func compileSignature(ys yamlSignature) (*Signature, error) {
	if ys.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	if len(ys.Tests) == 0 {
		return nil, fmt.Errorf("no tests")
	}
	sig := &Signature{
		MIME:       ys.MIME,
		Name:       ys.Name,
		Extensions: append([]string(nil), ys.Extensions...),
	}
	for i, yt := range ys.Tests {
		t, err := compileTest(yt)
		if err != nil {
			return nil, fmt.Errorf("test %d: %w", i, err)
		}
		sig.tests = append(sig.tests, t)
	}
	return sig, nil
}

func compileTest(yt yamlTest) (compiledTest, error) {
	set := 0
	for _, s := range []string{yt.Literal, yt.Search, yt.Regex} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return compiledTest{}, fmt.Errorf("exactly one of literal, search, regex required")
	}
	if yt.Offset < 0 || yt.Range < 0 {
		return compiledTest{}, fmt.Errorf("negative offset or range")
	}
	switch {
	case yt.Literal != "":
		data, err := testBytes(yt.Literal, yt.Hex)
		if err != nil {
			return compiledTest{}, err
		}
		return compiledTest{kind: literalTest, data: data, offset: yt.Offset}, nil
	case yt.Search != "":
		data, err := testBytes(yt.Search, yt.Hex)
		if err != nil {
			return compiledTest{}, err
		}
		return compiledTest{kind: searchTest, data: data, limit: yt.Range, pattern: -1}, nil
	default:
		re, err := regexp2.Compile(yt.Regex, regexp2.None)
		if err != nil {
			return compiledTest{}, fmt.Errorf("compiling regex: %w", err)
		}
		return compiledTest{kind: regexTest, re: re, limit: yt.Range}, nil
	}
}

func testBytes(s string, isHex bool) ([]byte, error) {
	if !isHex {
		return []byte(s), nil
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding hex: %w", err)
	}
	return data, nil
}
