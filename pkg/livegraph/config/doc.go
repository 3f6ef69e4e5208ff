/*
Package config provides typed access to node configuration maps and decodes
graph files for the CLI.

# Node configs

Node factories and Configurable nodes receive their static config as a
map[string]any. Config wraps it with accessors that fall back to a default
on a missing key or a type mismatch:

	func (n *agentNode) SetConfig(raw map[string]any) error {
	    cfg := config.New(raw)
	    n.model = cfg.String("model", "default")
	    n.tools = cfg.StringSlice("tools", nil)
	    n.retries = cfg.Sub("retry").Int("attempts", 3)
	    return nil
	}

Numbers decoded from JSON arrive as float64; Int converts them when they
carry no fractional part. Has tells an absent key from one set to its
zero value.

Without returns a copy minus some keys, which the reconciler uses when it
strips unrecognized keys before retrying a setter.

# Files

DecodeFile reads YAML (.yaml, .yml) or JSON (.json) into a typed value and
rejects unknown fields:

	var def graph.Definition
	if err := config.DecodeFile("graph.yaml", &def); err != nil {
	    return err
	}
*/
package config
