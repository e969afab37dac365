package summary

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
)

// Field names accepted for each part of the response, preferred first
var (
	summaryFields     = []string{"summary", "narrative", "overview"}
	decisionFields    = []string{"decisions", "key_decisions"}
	actionItemFields  = []string{"action_items", "actionItems", "actions", "tasks"}
	decisionTextKeys  = []string{"decision", "text", "description", "title", "summary"}
	descriptionKeys   = []string{"description", "task", "action", "text", "title", "item"}
	ownerKeys         = []string{"owner", "assignee", "assigned_to", "responsible", "who"}
	deadlineKeys      = []string{"deadline", "due", "due_date", "dueDate", "when"}
	errNullResponse   = errors.New("response is JSON null")
	errEmptyResponse  = errors.New("response is empty")
	errNotJSONPayload = errors.New("no JSON object found in response")
)

// Assemble parses a model response into a MeetingSummary. Missing or oddly
// shaped fields degrade to empty values. Only a response that holds no JSON
// object at all is an error; the returned summary is then a placeholder.
func Assemble(raw string) (MeetingSummary, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return Placeholder(PlaceholderText), apperrors.Malformed(errEmptyResponse)
	}
	if !strings.HasPrefix(payload, "{") {
		return Placeholder(PlaceholderText), apperrors.Malformed(errNotJSONPayload)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return Placeholder(PlaceholderText), apperrors.Malformed(err)
	}
	if fields == nil {
		return Placeholder(PlaceholderText), apperrors.Malformed(errNullResponse)
	}

	return MeetingSummary{
		Summary:     scalarText(lookup(fields, summaryFields...)),
		Decisions:   decodeDecisions(lookup(fields, decisionFields...)),
		ActionItems: decodeActionItems(lookup(fields, actionItemFields...)),
	}, nil
}

// extractJSON strips markdown code fences and any prose around the
// outermost object
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Strip markdown code fences
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s[3:], "\n"); idx >= 0 {
			s = s[3+idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Find first { and last }
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// lookup returns the first present field among names, falling back to a
// case and separator insensitive match
func lookup(fields map[string]json.RawMessage, names ...string) json.RawMessage {
	for _, name := range names {
		if v, ok := fields[name]; ok {
			return v
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range names {
		want := normalizeKey(name)
		for _, k := range keys {
			if normalizeKey(k) == want {
				return fields[k]
			}
		}
	}
	return nil
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

// kind returns the first significant byte of a JSON value
func kind(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

// scalarText renders a JSON value as display text. Strings are unquoted,
// null is empty, other scalars keep their JSON text and arrays are joined.
func scalarText(raw json.RawMessage) string {
	switch kind(raw) {
	case 0, 'n':
		return ""
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			var parts []string
			for _, item := range items {
				if t := scalarText(item); t != "" {
					parts = append(parts, t)
				}
			}
			return strings.Join(parts, " ")
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err == nil {
			if t := scalarText(lookup(obj, decisionTextKeys...)); t != "" {
				return t
			}
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err == nil {
			return compact.String()
		}
	}
	return strings.TrimSpace(string(raw))
}

// elements returns the members of a JSON array, or the value itself when it
// is a single non-null value
func elements(raw json.RawMessage) []json.RawMessage {
	switch kind(raw) {
	case 0, 'n':
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			return items
		}
		return nil
	}
	return []json.RawMessage{raw}
}

func decodeDecisions(raw json.RawMessage) []string {
	decisions := []string{}
	for _, item := range elements(raw) {
		if t := scalarText(item); t != "" {
			decisions = append(decisions, t)
		}
	}
	return decisions
}

func decodeActionItems(raw json.RawMessage) []ActionItem {
	items := []ActionItem{}
	for _, el := range elements(raw) {
		var item ActionItem
		if kind(el) == '{' {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(el, &obj); err != nil {
				continue
			}
			item = ActionItem{
				Description: scalarText(lookup(obj, descriptionKeys...)),
				Owner:       scalarText(lookup(obj, ownerKeys...)),
				Deadline:    scalarText(lookup(obj, deadlineKeys...)),
			}
		} else {
			item = ActionItem{Description: scalarText(el)}
		}

		if item == (ActionItem{}) {
			continue
		}
		items = append(items, item)
	}
	return items
}
