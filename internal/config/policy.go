package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ETagMethod selects how an entity tag is derived for a file.
type ETagMethod int

const (
	ETagContentHash ETagMethod = iota
	ETagLastModified
)

func (m ETagMethod) String() string {
	if m == ETagLastModified {
		return "lastmodified"
	}
	return "contenthash"
}

func parseETagMethod(s string) (ETagMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "contenthash", "hash", "md5", "sha256":
		return ETagContentHash, nil
	case "lastmodified", "last-modified", "mtime":
		return ETagLastModified, nil
	default:
		return 0, fmt.Errorf("unknown etag method %q", s)
	}
}

// PolicyRule describes how files with a given extension are cached and served.
type PolicyRule struct {
	Compress                bool
	ServeFromMemory         bool
	MaxMemorySize           int64
	ETagMethod              ETagMethod
	Expires                 time.Duration
	MemorySlidingExpiration time.Duration
}

// DefaultRule is used when no policy file is configured and for unknown extensions.
var DefaultRule = PolicyRule{
	Compress:                false,
	ServeFromMemory:         true,
	MaxMemorySize:           256 * 1024,
	ETagMethod:              ETagContentHash,
	Expires:                 30 * 24 * time.Hour,
	MemorySlidingExpiration: 30 * time.Minute,
}

// PolicyTable is an immutable extension -> rule lookup.
type PolicyTable struct {
	rules map[string]PolicyRule
	def   PolicyRule
}

// NewPolicyTable builds a table from rules keyed by extension. Keys may be
// comma-separated lists and are normalized with NormalizeExtension.
func NewPolicyTable(def PolicyRule, rules map[string]PolicyRule) *PolicyTable {
	t := &PolicyTable{
		rules: make(map[string]PolicyRule, len(rules)),
		def:   def,
	}
	for key, rule := range rules {
		for _, ext := range strings.Split(key, ",") {
			if ext = NormalizeExtension(ext); ext != "" {
				t.rules[ext] = rule
			}
		}
	}
	return t
}

// DefaultPolicyTable compresses text assets and keeps binary media uncompressed.
func DefaultPolicyTable() *PolicyTable {
	text := DefaultRule
	text.Compress = true

	media := DefaultRule
	media.MaxMemorySize = 64 * 1024

	archive := DefaultRule
	archive.ServeFromMemory = false
	archive.ETagMethod = ETagLastModified

	return NewPolicyTable(DefaultRule, map[string]PolicyRule{
		".css,.js,.mjs,.json,.html,.htm,.txt,.xml,.svg,.csv,.map": text,
		".png,.jpg,.jpeg,.gif,.webp,.ico,.avif":                   media,
		".zip,.gz,.tgz,.bz2,.7z,.mp4,.webm,.mp3,.iso":             archive,
	})
}

// Resolve returns the rule for ext, or the default rule. It never fails.
func (t *PolicyTable) Resolve(ext string) PolicyRule {
	if rule, ok := t.rules[NormalizeExtension(ext)]; ok {
		return rule
	}
	return t.def
}

// Default returns the fallback rule.
func (t *PolicyTable) Default() PolicyRule {
	return t.def
}

// Len reports the number of extensions with an explicit rule.
func (t *PolicyTable) Len() int {
	return len(t.rules)
}

// NormalizeExtension lower-cases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

type policyFile struct {
	Default    *ruleFile  `yaml:"default"`
	Extensions []ruleFile `yaml:"extensions"`
}

type ruleFile struct {
	Extension         string `yaml:"extension"`
	Compress          *bool  `yaml:"compress"`
	ServeFromMemory   *bool  `yaml:"serveFromMemory"`
	MaxMemorySize     string `yaml:"maxMemorySize"`
	ETag              string `yaml:"etag"`
	Expires           string `yaml:"expires"`
	SlidingExpiration string `yaml:"slidingExpiration"`
}

// LoadPolicyTable reads a YAML policy file.
func LoadPolicyTable(filename string) (*PolicyTable, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return ParsePolicyTable(data)
}

// ParsePolicyTable decodes a YAML policy document. Fields omitted on an
// extension rule inherit from the default rule.
func ParsePolicyTable(data []byte) (*PolicyTable, error) {
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("decoding policy file: %w", err)
	}

	def := DefaultRule
	if pf.Default != nil {
		var err error
		if def, err = pf.Default.apply(DefaultRule); err != nil {
			return nil, fmt.Errorf("default rule: %w", err)
		}
	}

	rules := make(map[string]PolicyRule, len(pf.Extensions))
	for i, rf := range pf.Extensions {
		if strings.TrimSpace(rf.Extension) == "" {
			return nil, fmt.Errorf("extension rule %d: extension cannot be empty", i)
		}
		rule, err := rf.apply(def)
		if err != nil {
			return nil, fmt.Errorf("extension rule %q: %w", rf.Extension, err)
		}
		rules[rf.Extension] = rule
	}
	return NewPolicyTable(def, rules), nil
}

func (rf ruleFile) apply(base PolicyRule) (PolicyRule, error) {
	rule := base
	if rf.Compress != nil {
		rule.Compress = *rf.Compress
	}
	if rf.ServeFromMemory != nil {
		rule.ServeFromMemory = *rf.ServeFromMemory
	}
	if rf.MaxMemorySize != "" {
		n, err := humanize.ParseBytes(rf.MaxMemorySize)
		if err != nil {
			return rule, fmt.Errorf("maxMemorySize: %w", err)
		}
		rule.MaxMemorySize = int64(n)
	}
	if rf.ETag != "" {
		m, err := parseETagMethod(rf.ETag)
		if err != nil {
			return rule, err
		}
		rule.ETagMethod = m
	}
	if rf.Expires != "" {
		d, err := time.ParseDuration(rf.Expires)
		if err != nil {
			return rule, fmt.Errorf("expires: %w", err)
		}
		rule.Expires = d
	}
	if rf.SlidingExpiration != "" {
		d, err := time.ParseDuration(rf.SlidingExpiration)
		if err != nil {
			return rule, fmt.Errorf("slidingExpiration: %w", err)
		}
		rule.MemorySlidingExpiration = d
	}
	return rule, nil
}
