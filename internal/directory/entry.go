package directory

import (
	"strconv"
	"strings"
)

// Entry is one raw directory search result: the resolved distinguished
// name plus all attribute values keyed by attribute name. Binary holds the
// raw bytes of every attribute for blobs such as photos.
type Entry struct {
	DN     string
	Attrs  map[string][]string
	Binary map[string][][]byte
}

// First returns the first value of the named attribute, or the empty
// string when the attribute is absent.
func (e Entry) First(attr string) string {
	if vs := e.Attrs[attr]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns all values of the named attribute, or nil when absent.
func (e Entry) Values(attr string) []string {
	return e.Attrs[attr]
}

// Bool reports whether the first value of the named attribute equals the
// literal "true", ignoring case.
func (e Entry) Bool(attr string) bool {
	return strings.EqualFold(e.First(attr), "true")
}

// Int parses the first value of the named attribute, returning 0 when the
// attribute is absent or not numeric.
func (e Entry) Int(attr string) int {
	n, err := strconv.Atoi(e.First(attr))
	if err != nil {
		return 0
	}
	return n
}

// FirstBinary returns the raw bytes of the first value of the named
// attribute, or nil when absent.
func (e Entry) FirstBinary(attr string) []byte {
	if vs := e.Binary[attr]; len(vs) > 0 {
		return vs[0]
	}
	return nil
}

// HasAll reports whether the entry carries every one of the named
// attributes.
func (e Entry) HasAll(attrs ...string) bool {
	for _, a := range attrs {
		if _, ok := e.Attrs[a]; !ok {
			return false
		}
	}
	return true
}
