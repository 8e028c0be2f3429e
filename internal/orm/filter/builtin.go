package filter

// BuiltinRules returns the rules of the content graph, in registration order
func BuiltinRules() []Rule {
	return []Rule{
		ReachableRule{},
		TranslationPrefix(),
		NodeTypePrefix(),
		NodePrefix(),
		ANodesPrefix(),
		BNodesPrefix(),
		TagGroups(),
		NodeTypeRule{},
		ArchiveRule{},
		CopyrightValid(),
		NotRule{},
		IntersectRule{},
	}
}

// DefaultChain returns a chain of the built-in rules
func DefaultChain() *Chain {
	return NewChain(BuiltinRules()...)
}
