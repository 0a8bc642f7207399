package magic

// yamlTest is the intermediate struct for one signature test. Exactly
// one of literal, search, or regex must be set; hex marks the literal
// or search string as hex-encoded bytes.
type yamlTest struct {
	Literal string `yaml:"literal,omitempty"`
	Search  string `yaml:"search,omitempty"`
	Regex   string `yaml:"regex,omitempty"`
	Hex     bool   `yaml:"hex,omitempty"`
	Offset  int64  `yaml:"offset,omitempty"`
	Range   int64  `yaml:"range,omitempty"`
}

// yamlSignature is the intermediate struct for one signature entry. An
// entry without a MIME type is diagnostic-only and skipped in MIME-only
// matching.
type yamlSignature struct {
	MIME       string     `yaml:"mime,omitempty"`
	Name       string     `yaml:"name"`
	Extensions []string   `yaml:"extensions,omitempty"`
	Tests      []yamlTest `yaml:"tests"`
}

// yamlSignatureFile is the top-level structure of a signature YAML file.
type yamlSignatureFile struct {
	Signatures []yamlSignature `yaml:"signatures"`
}
