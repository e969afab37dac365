// Package summary builds summarization requests within a token budget and
// normalizes model responses into a MeetingSummary.
package summary

// PlaceholderText is the summary shown when no usable summary exists
const PlaceholderText = "A summary could not be produced for this meeting. The transcript is included below."

// UnavailableText is the summary shown when the summarization service
// stayed unavailable after retries
const UnavailableText = "The summarization service was unavailable, so no summary could be produced. The transcript is included below."

// EmptyTranscriptText is the summary shown when nothing was recognized
const EmptyTranscriptText = "No speech was recognized in this recording, so there is nothing to summarize."

// ActionItem is a task agreed in the meeting
type ActionItem struct {
	Description string `json:"description" yaml:"description"`
	Owner       string `json:"owner" yaml:"owner"`
	Deadline    string `json:"deadline" yaml:"deadline"`
}

// MeetingSummary is the structured result of summarization. Decisions and
// ActionItems are never nil so that they encode as empty lists.
type MeetingSummary struct {
	Summary     string       `json:"summary" yaml:"summary"`
	Decisions   []string     `json:"decisions" yaml:"decisions"`
	ActionItems []ActionItem `json:"action_items" yaml:"action_items"`
	Truncated   bool         `json:"truncated" yaml:"truncated"`
	Placeholder bool         `json:"placeholder" yaml:"placeholder"`
}

// Placeholder returns a summary carrying text and empty lists
func Placeholder(text string) MeetingSummary {
	return MeetingSummary{
		Summary:     text,
		Decisions:   []string{},
		ActionItems: []ActionItem{},
		Placeholder: true,
	}
}

// Request is one summarization call
type Request struct {
	Transcript     string
	Instructions   string
	Schema         string
	Truncated      bool
	OriginalTokens int
	Tokens         int
}

// Prompt returns the user message carrying the transcript
func (r *Request) Prompt() string {
	return "Meeting transcript:\n---\n" + r.Transcript + "\n---"
}
