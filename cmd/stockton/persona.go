package main

import (
	"fmt"
	"os"
	"strings"

	"stockton/pkg/protocol"
)

func personaDocs(p protocol.Persona) map[string]string {
	return map[string]string{
		"identity_md": p.IdentityMD,
		"soul_md":     p.SoulMD,
		"user_md":     p.UserMD,
		"tools_md":    p.ToolsMD,
		"agents_md":   p.AgentsMD,
	}
}

// applyPersonaFiles reads each field=path pair into p.
func applyPersonaFiles(p *protocol.Persona, pairs []string) error {
	fields := map[string]*string{
		"identity_md": &p.IdentityMD,
		"soul_md":     &p.SoulMD,
		"user_md":     &p.UserMD,
		"tools_md":    &p.ToolsMD,
		"agents_md":   &p.AgentsMD,
	}
	for _, pair := range pairs {
		key, path, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: want field=path", pair)
		}
		dst, known := fields[strings.TrimSpace(key)]
		if !known {
			return fmt.Errorf("unknown persona field %q", key)
		}
		data, err := os.ReadFile(strings.TrimSpace(path)) //nolint:gosec // operator-supplied path
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		*dst = string(data)
	}
	return nil
}
