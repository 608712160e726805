package converter

import "strings"

// buildMatchForSlice computes the discriminator match value for a slice by
// reading the discriminator's path out of the slice's own schema pattern (or
// nested elements).
func buildMatchForSlice(slicing *Slicing, sliceSchema *Element) map[string]any {
	match := map[string]any{}
	if slicing == nil || len(slicing.Discriminator) == 0 {
		return match
	}

	for _, d := range slicing.Discriminator {
		if d.Type != "pattern" && d.Type != "value" && d.Type != "" {
			continue
		}
		path := strings.TrimSpace(d.Path)
		if path == "" {
			continue
		}

		if path == "$this" {
			if sliceSchema.Pattern != nil {
				if m, ok := sliceSchema.Pattern.Value.(map[string]any); ok {
					for k, v := range m {
						match[k] = v
					}
				}
			}
			continue
		}

		parts := strings.Split(path, ".")
		if len(parts) == 1 {
			if child, ok := sliceSchema.Elements[parts[0]]; ok && child.Pattern != nil {
				match[parts[0]] = child.Pattern.Value
			}
			continue
		}

		// nested path: walk nested elements to the pattern value.
		cur := sliceSchema
		ok := true
		for _, p := range parts[:len(parts)-1] {
			child, exists := cur.Elements[p]
			if !exists {
				ok = false
				break
			}
			cur = child
		}
		if ok {
			last := parts[len(parts)-1]
			if child, exists := cur.Elements[last]; exists && child.Pattern != nil {
				nested := map[string]any{}
				inner := nested
				for _, p := range parts[1 : len(parts)-1] {
					next := map[string]any{}
					inner[p] = next
					inner = next
				}
				inner[last] = child.Pattern.Value
				match[parts[0]] = nested[parts[0]]
				if len(parts) == 2 {
					match[parts[0]] = map[string]any{last: child.Pattern.Value}
				}
			}
		}
	}

	return match
}

func buildSliceNode(sliceSchema *Element, match map[string]any, sliceMin *int, sliceMax string) *Slice {
	s := &Slice{Match: match, Schema: sliceSchema}
	if sliceMin != nil && *sliceMin != 0 {
		s.Min = sliceMin
	}
	if sliceMax != "" && sliceMax != "*" {
		if v, ok := parseMaxInt(sliceMax); ok {
			s.Max = &v
		}
	}
	return s
}

func buildSlice(a Action, parent *Element, sliceSchema *Element) {
	merged := parent.Slicing
	if merged == nil {
		merged = &Slicing{}
	}
	if a.Slicing != nil {
		merged.Discriminator = a.Slicing.Discriminator
		merged.Rules = a.Slicing.Rules
		merged.Ordered = a.Slicing.Ordered
	}
	if merged.Slices == nil {
		merged.Slices = map[string]*Slice{}
	}

	match := buildMatchForSlice(merged, sliceSchema)
	merged.Slices[a.SliceName] = buildSliceNode(sliceSchema, match, a.SliceMin, a.SliceMax)
	parent.Slicing = merged
}

// slicingToExtensions flattens an extension element's slicing table into a
// name → extension-descriptor map for the schema's top-level extensions.
func slicingToExtensions(child *Element) map[string]*Element {
	extensions := map[string]*Element{}
	if child.Slicing == nil {
		return extensions
	}
	for name, slice := range child.Slicing.Slices {
		ext := &Element{}
		if slice.Schema != nil {
			ext.URL = slice.Schema.URL
			ext.Type = ""
			ext.Pattern = slice.Schema.Pattern
			ext.Constraint = slice.Schema.Constraint
			ext.MustSupport = slice.Schema.MustSupport
			ext.IsModifier = slice.Schema.IsModifier
			ext.Min = slice.Schema.Min
			ext.Max = slice.Schema.Max
		}
		if slice.Min != nil && *slice.Min != 0 {
			ext.Min = slice.Min
		}
		if slice.Max != nil {
			ext.Max = slice.Max
		}
		extensions[name] = ext
	}
	return extensions
}

func addElement(elementName string, parent *Element, child *Element) {
	if elementName == "extension" {
		parent.Extensions = slicingToExtensions(child)
	}

	if parent.Elements == nil {
		parent.Elements = map[string]*Element{}
	}

	actualName := elementName
	if child.ChoiceOf != "" {
		actualName = child.ChoiceOf
	}

	requiredFlag := child.required
	child.required = false

	parent.Elements[elementName] = child

	if requiredFlag {
		found := false
		for _, r := range parent.Required {
			if r == actualName {
				found = true
				break
			}
		}
		if !found {
			parent.Required = append(parent.Required, actualName)
		}
	}
}

// ApplyActions mutates the build stack according to actions, pushing new
// frames for Enter/EnterSlice and popping+merging for Exit/ExitSlice. value
// is the already-transformed element for the path position the actions
// originate from.
func ApplyActions(stack []*Element, actions []Action, value *Element) []*Element {
	for i, action := range actions {
		var nextIsEnter bool
		if i+1 < len(actions) {
			nextIsEnter = actions[i+1].Kind == ActionEnter
		}

		var toPush *Element
		if nextIsEnter {
			toPush = &Element{}
		} else {
			toPush = value
		}

		switch action.Kind {
		case ActionEnter, ActionEnterSlice:
			stack = append(stack, toPush)
		case ActionExit:
			if len(stack) < 2 {
				continue
			}
			child := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]
			addElement(action.El, parent, child)
		case ActionExitSlice:
			if len(stack) < 2 {
				continue
			}
			child := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]
			buildSlice(action, parent, child)
		}
	}
	return stack
}
