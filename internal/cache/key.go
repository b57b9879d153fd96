package cache

import "strings"

const (
	keyNamespace = "repo:"
	anyTenant    = "all"
)

// segmentEscaper keeps ':' inside a segment from being read as a separator.
var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Key builds a deterministic cache key for a repository lookup. The same
// collection, tenant scope, shape and detail always produce the same key, and
// different tenants never share one. Segments are escaped, so a tenant id or
// detail containing ':' cannot imitate another tenant's key.
//
//	repo:<collection>:t=<tenant>:<shape>:<detail>
//	repo:<collection>:all:<shape>:<detail>
func Key(collection, tenantID, shape, detail string) string {
	scope := anyTenant
	if tenantID != "" {
		scope = "t=" + segmentEscaper.Replace(tenantID)
	}
	var b strings.Builder
	b.WriteString(CollectionPattern(collection))
	b.WriteString(scope)
	b.WriteByte(':')
	b.WriteString(segmentEscaper.Replace(shape))
	b.WriteByte(':')
	b.WriteString(segmentEscaper.Replace(detail))
	return b.String()
}

// CollectionPattern is the prefix shared by every key of collection.
func CollectionPattern(collection string) string {
	return keyNamespace + segmentEscaper.Replace(collection) + ":"
}
