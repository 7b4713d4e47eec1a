package analysis

import (
	"encoding/json"
	"errors"
	"strings"
)

const defaultStorytellerName = "Storyteller"

// ErrNotFound is returned by repositories for a missing project.
var ErrNotFound = errors.New("not found")

// Project is the owning record for a set of transcripts.
type Project struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	OrganizationName string          `json:"organization_name,omitempty"`
	Context          *ProjectContext `json:"context,omitempty"`
}

// ProjectContextFrom builds a context from the stored quick text and full
// profile JSON. It returns nil when neither is present or the profile is
// unreadable and there is no quick text.
func ProjectContextFrom(quick *string, full []byte) *ProjectContext {
	pc := &ProjectContext{}
	if quick != nil {
		pc.Quick = strings.TrimSpace(*quick)
	}
	if len(full) > 0 {
		var p ProjectProfile
		if json.Unmarshal(full, &p) == nil && (p.Mission != "" || len(p.Goals) > 0 || len(p.Categories) > 0) {
			pc.Full = &p
		}
	}
	if pc.Quick == "" && pc.Full == nil {
		return nil
	}
	return pc
}

// TranscriptRecord is a transcript row joined with its storyteller, as read
// from storage. Any column may be NULL.
type TranscriptRecord struct {
	ID                string
	ProjectID         string
	StorytellerID     *string
	Title             *string
	Text              *string
	TranscriptContent *string
	FormattedText     *string
	DurationSeconds   *int
	WordCount         *int
	DisplayName       *string
	FullName          *string
}

// Transcript converts the record. Records without a storyteller or without
// any text are rejected.
func (r TranscriptRecord) Transcript() (Transcript, bool) {
	text := firstNonEmpty(r.Text, r.TranscriptContent, r.FormattedText)
	storyteller := deref(r.StorytellerID)
	if text == "" || storyteller == "" {
		return Transcript{}, false
	}
	t := Transcript{
		ID:              r.ID,
		ProjectID:       r.ProjectID,
		StorytellerID:   storyteller,
		StorytellerName: StorytellerName(deref(r.DisplayName), deref(r.FullName)),
		Title:           deref(r.Title),
		Text:            text,
	}
	if r.DurationSeconds != nil {
		t.DurationSeconds = *r.DurationSeconds
	}
	if r.WordCount != nil {
		t.WordCount = *r.WordCount
	}
	return t, true
}

// StorytellerName applies the display name, full name, generic label chain.
func StorytellerName(display, full string) string {
	if s := strings.TrimSpace(display); s != "" {
		return s
	}
	if s := strings.TrimSpace(full); s != "" {
		return s
	}
	return defaultStorytellerName
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return *v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
