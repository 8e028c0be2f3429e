package filter

import (
	"strings"

	"github.com/conduit-lang/criteria/internal/orm/query"
)

// PrefixRule rewrites "<chain>.rest" into joins along chain and compiles
// "rest" against the joined alias, through both phases again.
//
// Chains are tried in order; put longer chains first. When Through is set
// and "rest" does not start with a member of the chain's target, the
// Through associations are joined too, so aNodes.nodeName reaches the
// related node while aNodes.fieldName stays on the relation row.
type PrefixRule struct {
	RuleName string
	Chains   [][]string
	Through  []string
	Priority int
}

// Name returns the rule name
func (r *PrefixRule) Name() string { return r.RuleName }

// Subscriptions returns the rule's rewrite priority
func (r *PrefixRule) Subscriptions() map[Event]int {
	return map[Event]int{EventRewrite: r.Priority}
}

// Apply joins the matching prefix chain and re-dispatches the remainder
func (r *PrefixRule) Apply(c *Compilation, _ Event, crit *Criterion) (Outcome, error) {
	for _, chain := range r.Chains {
		prefix := strings.Join(chain, ".") + "."
		rest, ok := strings.CutPrefix(crit.Property, prefix)
		if !ok || rest == "" {
			continue
		}
		if !crit.Resource.HasRelationship(chain[0]) {
			continue
		}

		alias, err := r.join(c, crit.Alias, chain)
		if err != nil {
			return NotClaimed, err
		}
		target, _ := c.Query.ResourceOf(alias)

		first, _, _ := strings.Cut(rest, ".")
		if len(r.Through) > 0 && !target.HasField(first) && !target.HasRelationship(first) {
			if alias, err = r.join(c, alias, r.Through); err != nil {
				return NotClaimed, err
			}
			target, _ = c.Query.ResourceOf(alias)
		}

		if err := c.Process(crit.Rebase(alias, target, rest, crit.Value)); err != nil {
			return NotClaimed, err
		}
		return Claimed, nil
	}
	return NotClaimed, nil
}

func (r *PrefixRule) join(c *Compilation, alias string, chain []string) (string, error) {
	for _, association := range chain {
		join, err := c.Query.EnsureJoin(alias, association, query.InnerJoin, false)
		if err != nil {
			return "", err
		}
		alias = join.Alias
	}
	return alias, nil
}

// TranslationPrefix rewrites translation.x
func TranslationPrefix() *PrefixRule {
	return &PrefixRule{RuleName: "translation_prefix", Chains: [][]string{{"translation"}}, Priority: 40}
}

// NodeTypePrefix rewrites node.nodeType.x and nodeType.x
func NodeTypePrefix() *PrefixRule {
	return &PrefixRule{RuleName: "node_type_prefix", Chains: [][]string{{"node", "nodeType"}, {"nodeType"}}, Priority: 30}
}

// NodePrefix rewrites node.x
func NodePrefix() *PrefixRule {
	return &PrefixRule{RuleName: "node_prefix", Chains: [][]string{{"node"}}, Priority: 20}
}

// ANodesPrefix rewrites aNodes.x through the node-to-node relation onto the related node
func ANodesPrefix() *PrefixRule {
	return &PrefixRule{RuleName: "a_nodes_prefix", Chains: [][]string{{"aNodes"}}, Through: []string{"nodeA"}, Priority: 20}
}

// BNodesPrefix rewrites bNodes.x through the node-to-node relation onto the related node
func BNodesPrefix() *PrefixRule {
	return &PrefixRule{RuleName: "b_nodes_prefix", Chains: [][]string{{"bNodes"}}, Through: []string{"nodeB"}, Priority: 20}
}
