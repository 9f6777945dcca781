package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"
	"golang.org/x/sync/errgroup"
)

// Institution groups the rule sets of one institution.
type Institution struct {
	Name      string              `yaml:"name"`
	Default   *RuleSet            `yaml:"default"`
	Faculties map[string]*RuleSet `yaml:"faculties"`
}

// registryFile is the on-disk layout of a template registry.
type registryFile struct {
	Institutions map[string]*Institution `yaml:"institutions"`
}

// Registry resolves rule sets by institution and faculty. A Registry is
// read-only after loading and safe for concurrent use.
type Registry struct {
	institutions map[string]*Institution
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{institutions: make(map[string]*Institution)}
}

// RegistryPattern selects the registry files under a registry directory.
const RegistryPattern = "**/*.{yaml,yml}"

// LoadRegistry reads a YAML registry file. When path is a directory every
// registry file under it is loaded, see LoadRegistryDir.
func LoadRegistry(path string) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading template registry: %w", err)
	}
	if info.IsDir() {
		return LoadRegistryDir(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template registry: %w", err)
	}
	return ParseRegistry(data)
}

// LoadRegistryDir loads every file matching RegistryPattern under dir into
// one registry, typically one file per institution. An institution defined
// in more than one file is an error.
func LoadRegistryDir(dir string) (*Registry, error) {
	names, err := doublestar.Glob(os.DirFS(dir), RegistryPattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("listing template registry %s: %w", dir, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no registry files under %s", dir)
	}
	sort.Strings(names)

	files := make([]*registryFile, len(names))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
			if err != nil {
				return fmt.Errorf("reading template registry: %w", err)
			}
			f, err := parseRegistryFile(data)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reg := NewRegistry()
	owner := make(map[string]string)
	for i, f := range files {
		for _, key := range sortedKeys(f.Institutions) {
			k := normalizeKey(key)
			if prev, ok := owner[k]; ok {
				return nil, fmt.Errorf("institution %q is defined in both %s and %s", k, prev, names[i])
			}
			owner[k] = names[i]
		}
		if err := reg.addFile(f); err != nil {
			return nil, fmt.Errorf("%s: %w", names[i], err)
		}
	}
	return reg, nil
}

// ParseRegistry parses a YAML registry document. Every rule set in it is
// validated; the first invalid one fails the whole registry.
func ParseRegistry(data []byte) (*Registry, error) {
	f, err := parseRegistryFile(data)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	if err := reg.addFile(f); err != nil {
		return nil, err
	}
	return reg, nil
}

func parseRegistryFile(data []byte) (*registryFile, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing template registry: %w", err)
	}
	return &f, nil
}

func (r *Registry) addFile(f *registryFile) error {
	for _, key := range sortedKeys(f.Institutions) {
		inst := f.Institutions[key]
		if inst == nil {
			continue
		}
		if err := r.Add(key, inst); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Add registers an institution under key, validating its rule sets.
func (r *Registry) Add(key string, inst *Institution) error {
	key = normalizeKey(key)
	if key == "" {
		return fmt.Errorf("institution key is empty")
	}
	if inst.Default != nil {
		if err := Validate(inst.Default); err != nil {
			return withKey(err, key, "")
		}
	}
	faculties := make(map[string]*RuleSet, len(inst.Faculties))
	for fk, rs := range inst.Faculties {
		if err := Validate(rs); err != nil {
			return withKey(err, key, fk)
		}
		faculties[normalizeKey(fk)] = rs
	}
	r.institutions[key] = &Institution{
		Name:      inst.Name,
		Default:   inst.Default,
		Faculties: faculties,
	}
	return nil
}

// Resolve returns a copy of the rule set for institution and faculty. An
// unknown faculty falls back to the institution's default rule set when one
// is registered.
func (r *Registry) Resolve(institution, faculty string) (*RuleSet, error) {
	inst, ok := r.institutions[normalizeKey(institution)]
	if !ok {
		return nil, &TemplateResolutionError{
			Institution: institution,
			Faculty:     faculty,
			Reason:      "unknown institution",
			Err:         ErrTemplateNotFound,
		}
	}
	if faculty != "" {
		if rs, ok := inst.Faculties[normalizeKey(faculty)]; ok {
			return rs.Clone(), nil
		}
	}
	if inst.Default != nil {
		return inst.Default.Clone(), nil
	}
	return nil, &TemplateResolutionError{
		Institution: institution,
		Faculty:     faculty,
		Reason:      "no rule set for faculty and no institution default",
		Err:         ErrTemplateNotFound,
	}
}

// Institutions returns the registered institution keys in sorted order.
func (r *Registry) Institutions() []string {
	return sortedKeys(r.institutions)
}

// Faculties returns the faculty keys of an institution in sorted order.
func (r *Registry) Faculties(institution string) []string {
	inst, ok := r.institutions[normalizeKey(institution)]
	if !ok {
		return nil
	}
	return sortedKeys(inst.Faculties)
}

// Marshal renders a rule set as YAML.
func Marshal(rs *RuleSet) ([]byte, error) {
	return yaml.Marshal(rs)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func withKey(err error, institution, faculty string) error {
	if tre, ok := err.(*TemplateResolutionError); ok {
		tre.Institution = institution
		tre.Faculty = faculty
		return tre
	}
	return err
}
