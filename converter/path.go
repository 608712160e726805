package converter

import (
	"strconv"
	"strings"
)

// ParsePath drops the leading resource-type segment and attaches slice
// metadata to the last segment only.
func ParsePath(el *StructureDefinitionElement) []PathComponent {
	parts := strings.Split(el.Path, ".")
	if len(parts) <= 1 {
		return nil
	}
	rest := parts[1:]

	path := make([]PathComponent, len(rest))
	for i, p := range rest {
		path[i] = PathComponent{El: p}
	}

	last := len(path) - 1
	item := path[last]

	if el.Slicing != nil {
		item.Slicing = el.Slicing
		if el.Min != nil {
			item.SliceMin = el.Min
		}
		if el.Max != "" && el.Max != "*" {
			item.SliceMax = el.Max
		}
	}

	if el.SliceName != "" {
		if el.Min != nil {
			item.SliceMin = el.Min
		}
		if el.Max != "" && el.Max != "*" {
			item.SliceMax = el.Max
		}
		item.SliceName = el.SliceName
	}

	path[last] = item
	return path
}

// CommonPath returns the longest run of components whose element names agree
// at matching depths; slice metadata is dropped from the result.
func CommonPath(a, b []PathComponent) []PathComponent {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	common := make([]PathComponent, 0, n)
	for i := 0; i < n; i++ {
		if a[i].El != b[i].El {
			break
		}
		common = append(common, PathComponent{El: a[i].El})
	}
	return common
}

// EnrichPath merges newPath against prevPath: a new component sharing an
// element name with the previous component at the same depth keeps its own
// slicing unless it has none, in which case the previous component's slicing
// (the declaration site) is propagated down.
func EnrichPath(prev, next []PathComponent) []PathComponent {
	enriched := make([]PathComponent, len(next))
	for i, comp := range next {
		if i < len(prev) && prev[i].El == comp.El {
			merged := comp
			if merged.Slicing == nil && prev[i].Slicing != nil {
				merged.Slicing = prev[i].Slicing
			}
			enriched[i] = merged
		} else {
			enriched[i] = comp
		}
	}
	return enriched
}

func parseMaxInt(max string) (int, bool) {
	if max == "" || max == "*" {
		return 0, false
	}
	v, err := strconv.Atoi(max)
	if err != nil {
		return 0, false
	}
	return v, true
}
