package agent

import (
	"fmt"
	"time"

	"github.com/seantiz/dispatch/internal/invoker"
	"github.com/seantiz/dispatch/internal/target"
)

// RegisterBuiltins serves the simulated processor kinds in-process: each
// gets a local handler on inv and a target of the same name in reg. It
// returns the registered target names.
func RegisterBuiltins(inv *invoker.LocalInvoker, reg *target.Registry, delay time.Duration) ([]string, error) {
	var names []string
	for _, kind := range Kinds() {
		if kind == KindEcho {
			continue
		}
		p, profile, err := NewProcessor(kind, delay)
		if err != nil {
			return names, err
		}

		inv.Handle(profile.Name, p.Process)
		err = reg.Register(target.Target{
			Name:         profile.Name,
			Description:  profile.Description,
			TriggerType:  target.TriggerOnDemand,
			Capabilities: profile.Capabilities,
			Endpoint:     invoker.LocalEndpoint(profile.Name),
		})
		if err != nil {
			return names, fmt.Errorf("register builtin %s: %w", profile.Name, err)
		}
		names = append(names, profile.Name)
	}
	return names, nil
}
