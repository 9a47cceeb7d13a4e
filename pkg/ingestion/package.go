package ingestion

import (
	"fmt"
	"sort"
	"strings"
)

// Package is a (name, version) pair. Two values with equal fields are the same package.
type Package struct {
	Name    string
	Version string
}

func (p Package) String() string {
	return p.Name + "@" + p.Version
}

// ParsePackage splits "name@version" at the last '@', so scoped npm names like
// "@babel/core@7.24.0" keep their leading '@'.
func ParsePackage(s string) (Package, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, "@")
	if i <= 0 || i == len(s)-1 {
		return Package{}, fmt.Errorf("invalid package reference %q: want name@version", s)
	}
	return Package{Name: s[:i], Version: s[i+1:]}, nil
}

// PackageSet collects unique packages. The zero value is not usable; use NewPackageSet.
type PackageSet map[Package]struct{}

func NewPackageSet(pkgs ...Package) PackageSet {
	s := make(PackageSet, len(pkgs))
	s.Add(pkgs...)
	return s
}

func (s PackageSet) Add(pkgs ...Package) {
	for _, p := range pkgs {
		s[p] = struct{}{}
	}
}

func (s PackageSet) Contains(p Package) bool {
	_, ok := s[p]
	return ok
}

func (s PackageSet) Len() int {
	return len(s)
}

// Sorted returns the members ordered by name, then version.
func (s PackageSet) Sorted() []Package {
	out := make([]Package, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

func (s PackageSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, p := range sorted {
		out[i] = p.String()
	}
	return out
}
