package expression

// ResolutionContext is the data a template or expression resolves
// against, per §4.2: the current node's input, completed upstream node
// outputs, the original trigger input, and an allow-listed slice of the
// process environment.
type ResolutionContext struct {
	NodeInput    map[string]interface{}
	NodeOutputs  map[string]map[string]interface{}
	TriggerInput map[string]interface{}
	Env          map[string]string
}

// toEnv builds the expr-lang evaluation environment for this context:
// $json, $node, $trigger, $env are exposed as top-level identifiers.
// $node is a function (not a map) because the grammar calls it:
// $node("id").output.path.
func (c *ResolutionContext) toEnv() map[string]interface{} {
	nodeFn := func(id string) map[string]interface{} {
		if out, ok := c.NodeOutputs[id]; ok {
			return map[string]interface{}{"output": out}
		}
		return map[string]interface{}{"output": map[string]interface{}{}}
	}

	env := map[string]interface{}{
		"$json": valueOrEmpty(c.NodeInput),
		"$node": nodeFn,
		"$trigger": valueOrEmpty(c.TriggerInput),
		"$env":     envAsInterfaceMap(c.Env),
	}
	return env
}

func valueOrEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func envAsInterfaceMap(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
