package converter

// sliceChanged reports whether the component at depth i in prev/next
// represents opening, closing, or switching a slice.
func sliceChanged(prev, next []PathComponent, i int) bool {
	hasPrev := i < len(prev)
	hasNext := i < len(next)
	switch {
	case hasPrev && hasNext:
		return prev[i].DiffersInSlice(next[i])
	default:
		return false
	}
}

func exitSliceAction(p PathComponent) Action {
	return Action{
		Kind:      ActionExitSlice,
		El:        p.El,
		SliceName: p.SliceName,
		Slicing:   p.Slicing,
		SliceMin:  p.SliceMin,
		SliceMax:  p.SliceMax,
	}
}

func enterSliceAction(p PathComponent) Action {
	return Action{
		Kind:      ActionEnterSlice,
		El:        p.El,
		SliceName: p.SliceName,
		Slicing:   p.Slicing,
		SliceMin:  p.SliceMin,
		SliceMax:  p.SliceMax,
	}
}

// calculateExits emits ExitSlice/Exit actions for every depth from
// len(prev)-1 down to commonLen, deepest first.
func calculateExits(prev []PathComponent, commonLen int) []Action {
	var actions []Action
	for i := len(prev) - 1; i >= commonLen; i-- {
		if prev[i].SliceName != "" {
			actions = append(actions, exitSliceAction(prev[i]))
		}
		actions = append(actions, Action{Kind: ActionExit, El: prev[i].El})
	}
	return actions
}

// calculateEnters emits Enter/EnterSlice actions for every depth from
// commonLen to len(next)-1, shallowest first.
func calculateEnters(next []PathComponent, commonLen int) []Action {
	var actions []Action
	for i := commonLen; i < len(next); i++ {
		actions = append(actions, Action{Kind: ActionEnter, El: next[i].El})
		if next[i].SliceName != "" {
			actions = append(actions, enterSliceAction(next[i]))
		}
	}
	return actions
}

// CalculateActions diffs prev and next paths into the ordered set of actions
// needed to bring the build stack from one to the other. All exits are
// emitted before any enters so the stack is always well-nested.
func CalculateActions(prev, next []PathComponent) []Action {
	common := CommonPath(prev, next)
	commonLen := len(common)

	var actions []Action
	actions = append(actions, calculateExits(prev, commonLen)...)

	// At the common boundary, close a differing slice on prev before
	// opening a differing slice on next.
	if commonLen > 0 && commonLen-1 < len(prev) && commonLen-1 < len(next) {
		i := commonLen - 1
		if sliceChanged(prev, next, i) {
			if prev[i].SliceName != "" {
				actions = append(actions, exitSliceAction(prev[i]))
			}
			if next[i].SliceName != "" {
				actions = append(actions, enterSliceAction(next[i]))
			}
		}
	}

	actions = append(actions, calculateEnters(next, commonLen)...)
	return actions
}
