package core

import (
	"fmt"
	"strings"
)

// UserID identifies a chat user. It is the transport's numeric chat ID.
type UserID int64

// MediaID is the auto-increment key of a stored media item.
// It is shared by the primary record and its searchable description.
type MediaID int64

// User is a known user of the service.
type User struct {
	ID       UserID
	Username string
}

// MediaType identifies the kind of media a MediaItem references.
type MediaType string

const (
	MediaTypePhoto    MediaType = "photo"
	MediaTypeDocument MediaType = "document"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeVoice    MediaType = "voice"
	MediaTypeVideo    MediaType = "video"
	MediaTypeSticker  MediaType = "sticker"
	MediaTypeGIF      MediaType = "gif"
	// MediaTypeArticle is plain text saved as-is. Its FileID holds the text itself.
	MediaTypeArticle MediaType = "article"
)

// MediaTypes lists every supported media type.
var MediaTypes = []MediaType{
	MediaTypePhoto,
	MediaTypeDocument,
	MediaTypeAudio,
	MediaTypeVoice,
	MediaTypeVideo,
	MediaTypeSticker,
	MediaTypeGIF,
	MediaTypeArticle,
}

// Valid reports whether t is one of the supported media types.
func (t MediaType) Valid() bool {
	for _, known := range MediaTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseMediaType converts stored text into a MediaType.
func ParseMediaType(s string) (MediaType, error) {
	t := MediaType(s)
	if !t.Valid() {
		return "", ValidateMediaType(t)
	}
	return t, nil
}

// MediaItem is a saved media reference with its user-supplied description.
// FileID is unique across all users.
type MediaItem struct {
	MediaID     MediaID
	UserID      UserID
	Type        MediaType
	FileID      string
	Caption     *string
	Description string
}

// CaptionText returns the caption or an empty string when there is none.
func (m *MediaItem) CaptionText() string {
	if m.Caption == nil {
		return ""
	}
	return *m.Caption
}

// Status is the current step of a user's conversation flow.
type Status int

const (
	// StatusIdle means no flow is active; it is stored as the absence of a status.
	StatusIdle Status = iota
	// StatusAwaitingDescription means a draft is queued and waits for its description.
	StatusAwaitingDescription
	// StatusAwaitingDeleteTarget means the user is sending file IDs to delete.
	StatusAwaitingDeleteTarget
	// StatusAwaitingDescriptionCheck means the next input is echoed back with its description.
	StatusAwaitingDescriptionCheck
)

var statusText = map[Status]string{
	StatusIdle:                     "",
	StatusAwaitingDescription:      "description",
	StatusAwaitingDeleteTarget:     "delete",
	StatusAwaitingDescriptionCheck: "check description",
}

// String returns the stored representation of the status.
func (s Status) String() string {
	return statusText[s]
}

// ParseStatus maps stored status text back to a Status.
// Empty text is StatusIdle; anything unrecognized is ErrUnknownStatus.
func ParseStatus(s string) (Status, error) {
	for status, text := range statusText {
		if text == s {
			return status, nil
		}
	}
	return StatusIdle, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Keys of the conversational state store.
const (
	StateKeyStatus    = "status"
	StateKeyMediaType = "media_type"
	StateKeyFileID    = "file_id"
	StateKeyCaption   = "caption"
)

// Draft is a MediaItem under construction, waiting for its description.
type Draft struct {
	Type    MediaType
	FileID  string
	Caption *string
}

// StateValues renders the draft as state store entries, together with the given status.
func (d Draft) StateValues(status Status) map[string]string {
	values := map[string]string{
		StateKeyStatus:    status.String(),
		StateKeyMediaType: string(d.Type),
		StateKeyFileID:    d.FileID,
	}
	if d.Caption != nil {
		values[StateKeyCaption] = *d.Caption
	}
	return values
}

// DraftFromState rebuilds a draft from state store entries.
func DraftFromState(values map[string]string) (Draft, error) {
	t, err := ParseMediaType(values[StateKeyMediaType])
	if err != nil {
		return Draft{}, err
	}
	d := Draft{Type: t, FileID: values[StateKeyFileID]}
	if caption, ok := values[StateKeyCaption]; ok {
		d.Caption = &caption
	}
	return d, nil
}

// Item finalizes the draft into a MediaItem owned by userID.
func (d Draft) Item(userID UserID, description string) *MediaItem {
	return &MediaItem{
		UserID:      userID,
		Type:        d.Type,
		FileID:      d.FileID,
		Caption:     d.Caption,
		Description: description,
	}
}

// NormalizeDescription trims the text and collapses runs of whitespace.
func NormalizeDescription(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
