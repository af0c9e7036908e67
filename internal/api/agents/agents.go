package agents

import "strings"

// Mode selects which model slot to resolve for an invocation.
type Mode string

const (
	ModeBase             Mode = "base"
	ModeStructuredOutput Mode = "structuredOutput"
	ModeSummarizer       Mode = "summarizer"
)

// ModelConfig names a provider/model pair.
type ModelConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ModelsSettings holds per-mode model overrides. A nil slot means "no opinion
// at this level", deferring to the next level down the precedence chain.
type ModelsSettings struct {
	Base             *ModelConfig
	StructuredOutput *ModelConfig
	Summarizer       *ModelConfig
}

func (m *ModelsSettings) slot(mode Mode) *ModelConfig {
	if m == nil {
		return nil
	}
	switch mode {
	case ModeStructuredOutput:
		return m.StructuredOutput
	case ModeSummarizer:
		return m.Summarizer
	default:
		return m.Base
	}
}

// Agent is a named prompt persona within the planning graph.
type Agent struct {
	ID     string
	Name   string
	Prompt string
	Models *ModelsSettings
}

// Registry resolves agents, models and prompts. It performs no network I/O;
// everything here is configuration lookup and string assembly.
type Registry struct {
	graphPrompt string
	graphModels *ModelsSettings
	project     *ModelsSettings
	agents      map[string]Agent
}

var builtinDefaults = map[Mode]ModelConfig{
	ModeBase:             {Provider: "anthropic", Model: "claude-4-sonnet-20250514"},
	ModeStructuredOutput: {Provider: "openai", Model: "gpt-4.1-mini-2025-04-14"},
	ModeSummarizer:       {Provider: "openai", Model: "gpt-4.1-nano-2025-04-14"},
}

// DefaultAgentID is the agent used when the caller does not name one.
const DefaultAgentID = "planner"

// NewRegistry builds the default planning graph: a shared prelude about the
// group-outing domain plus the planner, booking and summarizer personas.
func NewRegistry() *Registry {
	return &Registry{
		graphPrompt: "You help small groups of friends plan outings together. " +
			"Be concrete: suggest specific places, times and activities rather than generic advice. " +
			"Keep suggestions realistic for the location and date range given.",
		agents: map[string]Agent{
			"planner": {
				ID:   "planner",
				Name: "Outing Planner",
				Prompt: "Turn the group's idea into a short, actionable outing plan. " +
					"Weave in the nearby places and events provided as context when they fit the idea. " +
					"Answer in a few friendly sentences, not a list of caveats.",
			},
			"booking": {
				ID:   "booking",
				Name: "Booking Assistant",
				Prompt: "Help the group lock in their chosen plan. " +
					"Point out what needs reserving ahead of time and suggest a concrete timeslot.",
			},
			"summarizer": {
				ID:   "summarizer",
				Name: "Summarizer",
				Prompt: "Condense the conversation into a one-paragraph recap of what the group decided, " +
					"including place, date and any open questions.",
				Models: &ModelsSettings{
					Base: &ModelConfig{Provider: "openai", Model: "gpt-4.1-nano-2025-04-14"},
				},
			},
		},
	}
}

// Agent returns the named agent, falling back to the default planner when the
// id is empty or unknown.
func (r *Registry) Agent(agentID string) Agent {
	if a, ok := r.agents[agentID]; ok {
		return a
	}
	return r.agents[DefaultAgentID]
}

// ResolveModel picks the provider/model pair for an agent and mode. First
// non-empty wins: agent override, then graph, then project, then the built-in
// default for the mode.
func (r *Registry) ResolveModel(agentID string, mode Mode) ModelConfig {
	agent := r.Agent(agentID)
	for _, settings := range []*ModelsSettings{agent.Models, r.graphModels, r.project} {
		if cfg := settings.slot(mode); cfg != nil && cfg.Model != "" {
			return *cfg
		}
	}
	return builtinDefaults[mode]
}

// ComposePrompt assembles the graph prelude, the agent's instructions and the
// end-user input under labeled sections, in that fixed order. Empty sections
// are skipped.
func (r *Registry) ComposePrompt(agentID, userInput string) string {
	agent := r.Agent(agentID)

	var sections []string
	if r.graphPrompt != "" {
		sections = append(sections, "[Graph Prompt]\n"+r.graphPrompt)
	}
	if agent.Prompt != "" {
		sections = append(sections, "[Agent Prompt]\n"+agent.Prompt)
	}
	sections = append(sections, "[User]\n"+userInput)

	return strings.Join(sections, "\n\n")
}
