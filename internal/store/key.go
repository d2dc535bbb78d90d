// Package store keeps a revalidated read cache of API resources. Queries are
// bound to a Key; every query sharing a key sees the same data. Nothing here
// invalidates on its own: after a write, callers revalidate the affected keys
// with Query.Mutate or Cache.Revalidate.
package store

import (
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached resource: a path plus its filters. The zero Key
// disables a query.
type Key struct {
	resource string
	params   string
}

// NewKey builds a key. Empty filter values are dropped, so {"status": ""} and
// no filter produce the same key.
func NewKey(resource string, filter map[string]string) Key {
	names := make([]string, 0, len(filter))
	for k, v := range filter {
		if v != "" {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(filter[k]))
	}
	return Key{resource: resource, params: strings.Join(parts, "&")}
}

// IsZero reports whether k is the disabled sentinel.
func (k Key) IsZero() bool { return k.resource == "" }

// Resource returns the resource path.
func (k Key) Resource() string { return k.resource }

// String returns the canonical form, e.g. "/handovers?active=true&unitId=u1".
func (k Key) String() string {
	if k.params == "" {
		return k.resource
	}
	return k.resource + "?" + k.params
}
