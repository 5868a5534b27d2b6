package turns

import (
	"strings"
)

// Mode selects the latency/thoroughness trade-off of a turn. It bounds how many
// research iterations the Researcher may run.
type Mode string

const (
	ModeSpeed    Mode = "speed"
	ModeBalanced Mode = "balanced"
	ModeQuality  Mode = "quality"
)

// MaxIterations returns the research iteration cap for the mode.
// Unknown modes are treated as balanced.
func (m Mode) MaxIterations() int {
	switch m {
	case ModeSpeed:
		return 2
	case ModeQuality:
		return 25
	default:
		return 6
	}
}

// ParseMode normalizes a user supplied mode string.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSpeed:
		return ModeSpeed
	case ModeQuality:
		return ModeQuality
	default:
		return ModeBalanced
	}
}

// Source is a class of external corpus the user allowed for this turn.
type Source string

const (
	SourceWeb         Source = "web"
	SourceAcademic    Source = "academic"
	SourceDiscussions Source = "discussions"
)

// IntentName identifies an intent in the intent registry.
type IntentName string

const (
	IntentWebSearch        IntentName = "web_search"
	IntentAcademicSearch   IntentName = "academic_search"
	IntentDiscussionSearch IntentName = "discussion_search"
	IntentPrivateSearch    IntentName = "private_search"
	IntentWidgetResponse   IntentName = "widget_response"
	IntentWritingTask      IntentName = "writing_task"
)

// Config is the per-turn run configuration chosen by the caller.
type Config struct {
	Mode    Mode     `json:"mode" yaml:"mode"`
	Sources []Source `json:"sources" yaml:"sources"`
	// FileIDs lists the uploaded files the user attached to the chat.
	FileIDs            []string `json:"fileIds,omitempty" yaml:"file_ids,omitempty"`
	SystemInstructions string   `json:"systemInstructions,omitempty" yaml:"system_instructions,omitempty"`
	// Suggestions enables the follow-up suggestion block after the answer.
	Suggestions bool `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// HasSource reports whether the source is enabled for the turn.
func (c Config) HasSource(s Source) bool {
	for _, src := range c.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// HasFiles reports whether the turn can search personal uploads.
func (c Config) HasFiles() bool {
	return len(c.FileIDs) > 0
}

// WidgetInvocation is the classifier's request to run one widget.
type WidgetInvocation struct {
	Type   string         `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Classification is the classifier's decision for one turn. It is produced once
// and treated as immutable afterwards.
type Classification struct {
	// SkipSearch forbids every retrieval action for the turn.
	SkipSearch bool `json:"skipSearch" yaml:"skip_search"`
	// StandaloneFollowUp is the query rewritten to be understandable without the history.
	StandaloneFollowUp string             `json:"standaloneFollowUp" yaml:"standalone_follow_up"`
	Intents            []IntentName       `json:"intents" yaml:"intents"`
	Widgets            []WidgetInvocation `json:"widgets" yaml:"widgets"`
}

func (c Classification) HasIntent(name IntentName) bool {
	for _, i := range c.Intents {
		if i == name {
			return true
		}
	}
	return false
}

// Widget returns the invocation for the given widget type, if the classifier requested it.
func (c Classification) Widget(widgetType string) (WidgetInvocation, bool) {
	for _, w := range c.Widgets {
		if w.Type == widgetType {
			return w, true
		}
	}
	return WidgetInvocation{}, false
}
