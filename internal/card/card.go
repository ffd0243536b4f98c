// Package card defines the card record model and its validation rules.
package card

import (
	"sort"
	"strings"
	"time"
)

// Field name constants used for validation errors, focus targets, and
// Firestore document keys.
const (
	FieldTitle       = "title"
	FieldType        = "type"
	FieldSubtype     = "subtype"
	FieldDescription = "description"
	FieldTags        = "tags"
	FieldStats       = "stats"
)

// Server-assigned document keys. The client never writes these; the store
// rejects payloads that set them.
const (
	KeyID         = "id"
	KeyCreatedBy  = "createdBy"
	KeyCreatedAt  = "createdAt"
	KeyModifiedBy = "modifiedBy"
	KeyModifiedAt = "modifiedAt"
	KeyVisible    = "visible"
)

// Draft is the in-memory, unsaved card currently in the editor.
type Draft struct {
	Title       string
	CardType    string
	Subtype     string
	Description string
	Tags        []string
	Stats       map[string]string // optional free-text stat fields
}

// Persisted is a Draft written to the remote store, plus the metadata the
// store assigned on write.
type Persisted struct {
	Draft

	ID         string
	CreatedBy  string
	CreatedAt  time.Time
	ModifiedBy string
	ModifiedAt time.Time
	Visible    bool
}

// Fields returns the document payload for a create or update. Server-assigned
// keys are never included; trimming is applied so stored values match what
// validation saw.
func (d Draft) Fields() map[string]any {
	fields := map[string]any{
		FieldTitle:       strings.TrimSpace(d.Title),
		FieldType:        strings.TrimSpace(d.CardType),
		FieldSubtype:     strings.TrimSpace(d.Subtype),
		FieldDescription: d.Description,
		FieldTags:        d.Tags,
	}
	for name, value := range d.Stats {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fields["stat."+name] = value
	}
	return fields
}

// ParseStats parses comma-separated name=value pairs into stat fields.
// Segments without a '=' or with an empty name are discarded.
func ParseStats(input string) map[string]string {
	stats := make(map[string]string)
	for _, seg := range strings.Split(input, ",") {
		name, value, ok := strings.Cut(seg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		stats[name] = strings.TrimSpace(value)
	}
	if len(stats) == 0 {
		return nil
	}
	return stats
}

// FormatStats renders stats back into editable name=value form, sorted by
// name so the output is stable.
func FormatStats(stats map[string]string) string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+stats[name])
	}
	return strings.Join(pairs, ", ")
}

// ParseTags splits comma-separated input into an ordered tag list, trimming
// each segment and discarding empty or whitespace-only ones.
func ParseTags(input string) []string {
	var tags []string
	for _, seg := range strings.Split(input, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		tags = append(tags, seg)
	}
	return tags
}
