package guard

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dtroode/schoolhub-client/internal/model"
)

// Kind selects the guard applied to a route.
type Kind string

const (
	KindPublic  Kind = "public"
	KindPrivate Kind = "private"
	KindRole    Kind = "role"
)

// Policy binds a path prefix to a guard.
type Policy struct {
	Pattern    string       `yaml:"pattern"`
	Kind       Kind         `yaml:"kind"`
	Restricted bool         `yaml:"restricted,omitempty"`
	Roles      []model.Role `yaml:"roles,omitempty"`
}

// Decide applies the policy's guard.
func (p Policy) Decide(s model.Session, loc Location) Decision {
	switch p.Kind {
	case KindPublic:
		return Public(s, loc, p.Restricted)
	case KindRole:
		return Role(s, loc, p.Roles)
	default:
		return Private(s, loc)
	}
}

func (p Policy) validate() error {
	if !strings.HasPrefix(p.Pattern, "/") {
		return fmt.Errorf("pattern %q must start with /", p.Pattern)
	}
	switch p.Kind {
	case KindPublic, KindPrivate:
		if len(p.Roles) > 0 {
			return fmt.Errorf("pattern %q: roles are only valid for kind %q", p.Pattern, KindRole)
		}
	case KindRole:
		if len(p.Roles) == 0 {
			return fmt.Errorf("pattern %q: kind %q needs at least one role", p.Pattern, KindRole)
		}
		for _, r := range p.Roles {
			if !r.IsValid() {
				return fmt.Errorf("pattern %q: %w: %q", p.Pattern, model.ErrUnsupportedRole, r)
			}
		}
	default:
		return fmt.Errorf("pattern %q: unknown kind %q", p.Pattern, p.Kind)
	}
	return nil
}

// DefaultPolicies covers the portal's built-in screens.
func DefaultPolicies() []Policy {
	return []Policy{
		{Pattern: model.LoginRoute, Kind: KindPublic, Restricted: true},
		{Pattern: "/signup", Kind: KindPublic, Restricted: true},
		{Pattern: model.UnauthorizedRoute, Kind: KindPublic},
		{Pattern: "/session", Kind: KindPublic},
		{Pattern: "/logout", Kind: KindPrivate},
		{Pattern: "/profile", Kind: KindPrivate},
		{Pattern: "/admin", Kind: KindRole, Roles: []model.Role{model.RoleAdmin}},
		{Pattern: "/teacher", Kind: KindRole, Roles: []model.Role{model.RoleTeacher}},
		{Pattern: "/student", Kind: KindRole, Roles: []model.Role{model.RoleStudent}},
		{Pattern: "/parent", Kind: KindRole, Roles: []model.Role{model.RoleParent}},
	}
}

// Table resolves paths to policies by longest matching prefix.
// Paths no policy covers are private.
type Table struct {
	policies []Policy
}

// NewTable validates policies and orders them for matching.
func NewTable(policies []Policy) (*Table, error) {
	seen := make(map[string]struct{}, len(policies))
	sorted := make([]Policy, 0, len(policies))
	for _, p := range policies {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.Pattern]; dup {
			return nil, fmt.Errorf("duplicate pattern %q", p.Pattern)
		}
		seen[p.Pattern] = struct{}{}
		sorted = append(sorted, p)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Pattern) > len(sorted[j].Pattern)
	})
	return &Table{policies: sorted}, nil
}

type policyFile struct {
	Routes []Policy `yaml:"routes"`
}

// LoadTable reads policies from a YAML file. An empty path yields the defaults.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return NewTable(DefaultPolicies())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route policy: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse route policy: %w", err)
	}

	t, err := NewTable(file.Routes)
	if err != nil {
		return nil, fmt.Errorf("invalid route policy: %w", err)
	}
	return t, nil
}

// Match returns the policy for path.
func (t *Table) Match(path string) Policy {
	for _, p := range t.policies {
		if matches(p.Pattern, path) {
			return p
		}
	}
	return Policy{Kind: KindPrivate}
}

// Policies returns the table's policies, longest pattern first.
func (t *Table) Policies() []Policy {
	return append([]Policy(nil), t.policies...)
}

func matches(pattern, path string) bool {
	if !strings.HasPrefix(path, pattern) {
		return false
	}
	return len(path) == len(pattern) || strings.HasSuffix(pattern, "/") || path[len(pattern)] == '/'
}
