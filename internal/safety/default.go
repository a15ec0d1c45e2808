package safety

// DefaultRules returns spec.md's five built-in rule detectors, one per
// category, in no particular order (the Evaluator regroups them by
// Category() and applies Order itself).
func DefaultRules(clientPathGlobs ...string) []Rule {
	return []Rule{
		NewDestructiveOperationRule(),
		NewClientSecretExposureRule(clientPathGlobs...),
		NewInjectionShapeRule(),
		NewBoundaryViolationRule(),
		NewStopConditionRule(),
	}
}
