package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// loadKDL reads <dir>/.goanalyzer.kdl if present, following the node-walk
// style of the teacher's parseKDL: unknown nodes/children are ignored
// rather than erroring, so a config file written against an older schema
// keeps working.
func loadKDL(dir string) (*Config, error) {
	path := filepath.Join(dir, ".goanalyzer.kdl")
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg := &Config{}
	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "log_level":
			if s, ok := firstStringArg(n); ok {
				cfg.LogLevel = LogLevel(s)
			}
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "size":
					if v, ok := firstIntArg(cn); ok {
						cfg.CacheSize = v
					}
				case "ttl_seconds":
					if v, ok := firstIntArg(cn); ok {
						cfg.CacheTTLSeconds = v
					}
				}
			}
		case "semantic":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.SemanticEnabled = b
					}
				case "path":
					if s, ok := firstStringArg(cn); ok {
						cfg.SemanticHelperPath = s
					}
				case "timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.SemanticTimeoutMs = v
					}
				}
			}
		}
	}
	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	s, ok := n.Arguments[0].Value.(string)
	return s, ok
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	b, ok := n.Arguments[0].Value.(bool)
	return b, ok
}
