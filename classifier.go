package gate

import (
	"sort"
	"strings"
)

// RouteClass is the policy class a path resolves to.
type RouteClass int

const (
	// RoutePublic needs no credential. Unmatched paths land here.
	RoutePublic RouteClass = iota
	// RouteGuestOnly is unreachable with a valid session (sign-in, sign-up).
	RouteGuestOnly
	// RouteAuthRequired needs any valid session.
	RouteAuthRequired
	// RouteRoleTiered needs a role at or above the rule's tier.
	RouteRoleTiered
	// RouteProviderInternal covers identity-provider callback plumbing.
	RouteProviderInternal
)

func (c RouteClass) String() string {
	switch c {
	case RoutePublic:
		return "public"
	case RouteGuestOnly:
		return "guest-only"
	case RouteAuthRequired:
		return "auth-required"
	case RouteRoleTiered:
		return "role-tiered"
	case RouteProviderInternal:
		return "provider-internal"
	default:
		return "unknown"
	}
}

// RouteRule binds a path prefix to a policy class. Tier is only meaningful
// for RouteRoleTiered rules.
type RouteRule struct {
	Prefix string
	Class  RouteClass
	Tier   Role
}

// Classification is the classifier's verdict for one path. Prefix is the
// matched rule prefix (empty for the public default); Path is the sanitized
// request path the engine may need for surface checks.
type Classification struct {
	Class  RouteClass
	Tier   Role
	API    bool
	Path   string
	Prefix string
}

// RouteTable resolves paths by longest matching prefix. It is immutable
// after construction and safe for concurrent use.
type RouteTable struct {
	rules       []RouteRule
	apiPrefixes []string
}

// RouteTableOption configures a RouteTable.
type RouteTableOption func(*RouteTable)

// WithAPIPrefixes overrides the prefixes treated as API surfaces.
func WithAPIPrefixes(prefixes ...string) RouteTableOption {
	return func(t *RouteTable) {
		if len(prefixes) > 0 {
			t.apiPrefixes = prefixes
		}
	}
}

// NewRouteTable builds a classifier from configured route groups. Rules are
// matched longest prefix first, so a route nested under both a tiered prefix
// and a generic auth-required prefix resolves to the most specific rule. A
// tiered rule with an unknown role is normalized to the admin tier so a
// config typo narrows access instead of widening it.
func NewRouteTable(rules []RouteRule, opts ...RouteTableOption) *RouteTable {
	table := &RouteTable{
		rules:       make([]RouteRule, 0, len(rules)),
		apiPrefixes: []string{"/api"},
	}

	for _, rule := range rules {
		rule.Prefix = sanitizePath(rule.Prefix)
		if rule.Prefix == "" {
			continue
		}
		if rule.Class == RouteRoleTiered && !rule.Tier.IsValid() {
			rule.Tier = RoleAdmin
		}
		table.rules = append(table.rules, rule)
	}

	sort.SliceStable(table.rules, func(i, j int) bool {
		return len(table.rules[i].Prefix) > len(table.rules[j].Prefix)
	})

	for _, opt := range opts {
		if opt != nil {
			opt(table)
		}
	}

	return table
}

// Classify maps a request path to its policy class. It is pure and total:
// any input, however malformed, yields a classification, and unmatched
// paths default to public.
func (t *RouteTable) Classify(path string) Classification {
	clean := sanitizePath(path)

	cls := Classification{
		Class: RoutePublic,
		Path:  clean,
		API:   t.isAPI(clean),
	}

	for _, rule := range t.rules {
		if matchPrefix(clean, rule.Prefix) {
			cls.Class = rule.Class
			cls.Prefix = rule.Prefix
			if rule.Class == RouteRoleTiered {
				cls.Tier = rule.Tier
			}
			break
		}
	}

	return cls
}

func (t *RouteTable) isAPI(path string) bool {
	for _, prefix := range t.apiPrefixes {
		if matchPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// matchPrefix is a segment-aware prefix match: /admin matches /admin and
// /admin/users but not /administrivia.
func matchPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func sanitizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
