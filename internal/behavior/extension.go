package behavior

// ExtensionFactory creates the per-instance state of a meta-extension.
type ExtensionFactory func(entity EntityID) any

// ExtensionBinding names a meta-extension a template uses.
type ExtensionBinding struct {
	Name    string
	Factory ExtensionFactory
}

func newExtensionTable(entity EntityID, bindings []ExtensionBinding) map[string]any {
	if len(bindings) == 0 {
		return nil
	}
	table := make(map[string]any, len(bindings))
	for _, b := range bindings {
		var state any
		if b.Factory != nil {
			state = b.Factory(entity)
		}
		table[b.Name] = state
	}
	return table
}
