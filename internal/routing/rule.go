package routing

import "github.com/tributary-ai/octoroute/internal/catalog"

// RuleRouter is a pure, synchronous classifier evaluated in fixed order;
// the first matching rule wins. Grounded on the original rule_based
// router, including its deliberate gap at CasualChat+High.
type RuleRouter struct{}

// NewRuleRouter constructs a RuleRouter. It holds no state.
func NewRuleRouter() *RuleRouter { return &RuleRouter{} }

// Route returns a tier and true if a rule matched, or false to delegate
// to the LLM router.
func (r *RuleRouter) Route(meta RouteMetadata) (catalog.Tier, bool) {
	t := meta.TokenEstimate

	// Rule 1: trivial/casual tasks -> Fast.
	if meta.TaskType == CasualChat && t < 256 && meta.Importance != High {
		return catalog.Fast, true
	}

	// Rule 2: high importance or deep work -> Deep. CasualChat+High is
	// deliberately excluded here and by rule 1, so it falls through to
	// the LLM router in hybrid mode.
	if (meta.Importance == High && meta.TaskType != CasualChat) ||
		meta.TaskType == DeepAnalysis || meta.TaskType == CreativeWriting {
		return catalog.Deep, true
	}

	// Rule 3: code generation.
	if meta.TaskType == Code {
		if t > 1024 {
			return catalog.Deep, true
		}
		return catalog.Balanced, true
	}

	// Rule 4: medium-depth QA/summary -> Balanced.
	if t >= 200 && t < 2048 && (meta.TaskType == QuestionAnswer || meta.TaskType == DocumentSummary) {
		return catalog.Balanced, true
	}

	return 0, false
}
