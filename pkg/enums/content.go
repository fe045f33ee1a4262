package enums

import "strings"

// ContentKind is content_kind.
type ContentKind string

const (
	ContentKindStory ContentKind = "story"
	ContentKindPost  ContentKind = "post"
)

var contentKinds = []ContentKind{ContentKindStory, ContentKindPost}

func (k ContentKind) IsValid() bool { return member(k, contentKinds) }

// ParseContentKind is case-insensitive and ignores surrounding space.
func ParseContentKind(raw string) (ContentKind, error) {
	return parse("content kind", strings.ToLower(strings.TrimSpace(raw)), contentKinds)
}

// ContentStatus is content_status.
type ContentStatus string

const (
	ContentStatusActive    ContentStatus = "active"
	ContentStatusSuspended ContentStatus = "suspended"
)

var contentStatuses = []ContentStatus{ContentStatusActive, ContentStatusSuspended}

func (s ContentStatus) IsValid() bool { return member(s, contentStatuses) }

// Viewable reports whether content in this status can be unlocked.
func (s ContentStatus) Viewable() bool {
	return s == ContentStatusActive
}
