package domain

import (
	"fmt"
	"strings"
)

// ModuleID selects the persona preset a turn is answered with.
type ModuleID string

const (
	ModuleKnowledge ModuleID = "KNOWLEDGE"
	ModuleWriting   ModuleID = "WRITING"
	ModuleTech      ModuleID = "TECH"
	ModuleStrategy  ModuleID = "STRATEGY"
	ModuleVision    ModuleID = "VISION"
)

// Module is a fixed preset with the instruction fragment sent to the model.
type Module struct {
	ID          ModuleID
	Name        string
	Instruction string
}

var modules = map[ModuleID]Module{
	ModuleKnowledge: {
		ID:   ModuleKnowledge,
		Name: "Knowledge",
		Instruction: "Module KNOWLEDGE: answer as an expert generalist. Give accurate, " +
			"well structured syntheses, cite the key facts and say when something is uncertain.",
	},
	ModuleWriting: {
		ID:   ModuleWriting,
		Name: "Writing",
		Instruction: "Module WRITING: act as a senior editor and writer. Produce polished, " +
			"eloquent text adapted to the requested tone, format and audience.",
	},
	ModuleTech: {
		ID:   ModuleTech,
		Name: "Tech",
		Instruction: "Module TECH: act as a principal software engineer. Provide correct, " +
			"idiomatic code in fenced blocks and explain the trade-offs briefly.",
	},
	ModuleStrategy: {
		ID:   ModuleStrategy,
		Name: "Strategy",
		Instruction: "Module STRATEGY: act as a strategic advisor. Lay out options, risks and " +
			"a recommended plan with concrete next steps.",
	},
	ModuleVision: {
		ID:   ModuleVision,
		Name: "Vision & Art",
		Instruction: "Module VISION: analyse attached images and documents in detail and help " +
			"with visual and artistic creation.",
	},
}

// Modules returns the presets in display order.
func Modules() []Module {
	return []Module{
		modules[ModuleKnowledge],
		modules[ModuleWriting],
		modules[ModuleTech],
		modules[ModuleStrategy],
		modules[ModuleVision],
	}
}

// Module returns the preset for id. Unknown ids yield the zero Module.
func (id ModuleID) Module() Module {
	return modules[id]
}

func (id ModuleID) Valid() bool {
	_, ok := modules[id]
	return ok
}

// ParseModuleID accepts module ids case-insensitively.
func ParseModuleID(s string) (ModuleID, error) {
	id := ModuleID(strings.ToUpper(strings.TrimSpace(s)))
	if !id.Valid() {
		return "", fmt.Errorf("unknown module %q", s)
	}
	return id, nil
}
