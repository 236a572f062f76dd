package storage

import (
	"path"
	"strings"
)

// TrimLastSegment returns p without its final path segment, or "" when p has
// a single segment. Paths are slash-separated and relative.
func TrimLastSegment(p string) string {
	p = path.Clean(strings.TrimSuffix(p, "/"))
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// RewritePrefix substitutes a renamed or moved ancestor segment into a
// descendant's stored relative path, leaving the remainder untouched.
// It reports false and returns p unchanged when p does not live inside
// oldPrefix; such descendants are physically stored elsewhere and must not
// be touched.
//
// This is a pure string transform: a folder rename/move costs one physical
// operation for the folder itself plus one RewritePrefix per descendant,
// with zero additional disk I/O.
func RewritePrefix(p, oldPrefix, newPrefix string) (string, bool) {
	if p == "" || oldPrefix == "" {
		return p, false
	}
	if p == oldPrefix {
		return newPrefix, true
	}
	if !strings.HasPrefix(p, oldPrefix+"/") {
		return p, false
	}
	return newPrefix + strings.TrimPrefix(p, oldPrefix), true
}
