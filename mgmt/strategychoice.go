package mgmt

import (
	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/ndn"
	"github.com/ndn-go/fw/table"
)

// StrategyChoiceModule is the module that handles Strategy Choice
// Management (spec.md §4.10: set, unset, list).
type StrategyChoiceModule struct {
	manager *Thread
}

func (s *StrategyChoiceModule) String() string { return "mgmt-strategy" }

func (s *StrategyChoiceModule) registerManager(manager *Thread) { s.manager = manager }

func (s *StrategyChoiceModule) handleIncomingInterest(cmd *Command) {
	switch cmd.Verb {
	case "set":
		s.set(cmd)
	case "unset":
		s.unset(cmd)
	case "list":
		s.list(cmd)
	default:
		s.manager.sendCtrlResp(cmd, ndn.StatusUnknownVerb, "Unknown verb", nil)
	}
}

func (s *StrategyChoiceModule) set(cmd *Command) {
	params := cmd.Params
	if params == nil || params.Name == nil {
		s.manager.sendCtrlResp(cmd, ndn.StatusBadRequest, "ControlParameters is incorrect", nil)
		return
	}
	if params.Strategy == nil {
		s.manager.sendCtrlResp(cmd, ndn.StatusBadRequest, "ControlParameters is incorrect (missing Strategy)", nil)
		return
	}

	// Resolution fills in the highest installed version when the request
	// is unversioned (spec.md §4.5).
	resolved, instance, ok := s.manager.fwder.ResolveStrategy(*params.Strategy)
	if !ok {
		core.Log.Warn(s, "Unknown strategy", "strategy", params.Strategy.Name)
		s.manager.sendCtrlResp(cmd, ndn.StatusUnsupportedStrategy, "Unknown strategy", nil)
		return
	}

	s.manager.fwder.StrategyChoice().Insert(params.Name, resolved, instance)
	core.Log.Info(s, "Set strategy", "name", params.Name, "strategy", resolved)

	s.manager.sendCtrlResp(cmd, ndn.StatusOK, "OK", &ndn.ControlParameters{
		Name:     params.Name,
		Strategy: &resolved,
	})
}

func (s *StrategyChoiceModule) unset(cmd *Command) {
	params := cmd.Params
	if params == nil {
		s.manager.sendCtrlResp(cmd, ndn.StatusBadRequest, "ControlParameters is incorrect", nil)
		return
	}
	if len(params.Name) == 0 {
		// The root entry is mandatory and non-erasable (spec.md §4.5/§7).
		// The root name decodes as a nil Name, so an absent Name is treated
		// as the root too.
		s.manager.sendCtrlResp(cmd, ndn.StatusUnauthorized, "Cannot unset root strategy", nil)
		return
	}

	s.manager.fwder.StrategyChoice().Unset(params.Name)
	core.Log.Info(s, "Unset strategy", "name", params.Name)

	s.manager.sendCtrlResp(cmd, ndn.StatusOK, "OK", &ndn.ControlParameters{Name: params.Name})
}

// StrategyChoiceEntryRecord is one record of the strategy-choice list
// dataset.
type StrategyChoiceEntryRecord struct {
	Name     ndn.Name
	Strategy ndn.Name
}

func (s *StrategyChoiceModule) list(cmd *Command) {
	var dataset []StrategyChoiceEntryRecord
	s.manager.fwder.StrategyChoice().Enumerate(func(entry *table.StrategyChoiceEntry) {
		dataset = append(dataset, StrategyChoiceEntryRecord{
			Name:     entry.Name(),
			Strategy: entry.StrategyName.Name,
		})
	})

	name := cmd.Prefix.Append("strategy-choice", "list")
	s.manager.sendStatusDataset(cmd, name, encodeDataset(dataset))
}
