package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mikey-austin/mtogo/internal/ports"
	"github.com/mikey-austin/mtogo/pkg/spark"
)

// Resolver resolves device selectors to presence records.
type Resolver struct {
	Presence ports.Broker
	Config   Config
}

// ResolveDevice resolves a selector, falling back to the configured default
// and then to the only online device.
func (r Resolver) ResolveDevice(ctx context.Context, selector string) (spark.Presence, error) {
	if selector == "" {
		selector = r.Config.DefaultDevice
	}

	presence, err := r.Presence.ListPresence(ctx)
	if err != nil {
		return spark.Presence{}, WrapError(ExitRuntime, "list presence", err)
	}
	if selector == "" {
		if len(presence) == 1 {
			return presence[0], nil
		}
		if len(presence) == 0 {
			return spark.Presence{}, &CLIError{Code: ExitNotFound, Msg: "no devices online"}
		}
		return spark.Presence{}, &CLIError{Code: ExitUsage, Msg: "device required: " + suggestionList(presence)}
	}
	return resolveSelector(selector, presence, r.Config.Aliases)
}

func resolveSelector(selector string, presence []spark.Presence, aliases map[string]string) (spark.Presence, error) {
	selector = strings.TrimSpace(selector)
	if alias, ok := aliases[selector]; ok {
		selector = alias
	}

	for _, p := range presence {
		if p.DeviceID == selector {
			return p, nil
		}
	}
	matches := make([]spark.Presence, 0)
	for _, p := range presence {
		if strings.EqualFold(p.Name, selector) {
			matches = append(matches, p)
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) == 0 {
		return spark.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no match for %q", selector)}
	}
	return spark.Presence{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous selector %q: %s", selector, suggestionList(matches))}
}

func suggestionList(matches []spark.Presence) string {
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.DeviceID))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
