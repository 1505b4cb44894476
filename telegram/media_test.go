package telegram

import (
	"encoding/json"
	"testing"

	"github.com/poiesic/mediastash/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaFromMessage(t *testing.T) {
	tests := []struct {
		name     string
		msg      *Message
		wantType core.MediaType
		wantFile string
	}{
		{
			name: "largest photo",
			msg: &Message{Photo: []PhotoSize{
				{FileID: "small", Width: 90, Height: 90},
				{FileID: "large", Width: 1280, Height: 960},
				{FileID: "medium", Width: 320, Height: 240},
			}},
			wantType: core.MediaTypePhoto,
			wantFile: "large",
		},
		{
			name:     "animation wins over document",
			msg:      &Message{Animation: &Animation{FileID: "anim"}, Document: &Document{FileID: "doc"}},
			wantType: core.MediaTypeGIF,
			wantFile: "anim",
		},
		{"document", &Message{Document: &Document{FileID: "doc"}}, core.MediaTypeDocument, "doc"},
		{"audio", &Message{Audio: &Audio{FileID: "aud"}}, core.MediaTypeAudio, "aud"},
		{"voice", &Message{Voice: &Voice{FileID: "voi"}}, core.MediaTypeVoice, "voi"},
		{"video", &Message{Video: &Video{FileID: "vid"}}, core.MediaTypeVideo, "vid"},
		{"sticker", &Message{Sticker: &Sticker{FileID: "stk"}}, core.MediaTypeSticker, "stk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := MediaFromMessage(tt.msg)
			require.NotNil(t, draft)
			assert.Equal(t, tt.wantType, draft.Type)
			assert.Equal(t, tt.wantFile, draft.FileID)
			assert.Nil(t, draft.Caption)
		})
	}
}

func TestMediaFromMessage_Caption(t *testing.T) {
	draft := MediaFromMessage(&Message{Video: &Video{FileID: "vid"}, Caption: "look"})
	require.NotNil(t, draft)
	require.NotNil(t, draft.Caption)
	assert.Equal(t, "look", *draft.Caption)
}

func TestMediaFromMessage_NoMedia(t *testing.T) {
	assert.Nil(t, MediaFromMessage(nil))
	assert.Nil(t, MediaFromMessage(&Message{Text: "hello"}))
}

func TestUpdate_Decode(t *testing.T) {
	raw := `{
		"update_id": 1,
		"message": {
			"message_id": 5,
			"from": {"id": 42, "is_bot": false, "first_name": "Ann", "language_code": "uk"},
			"chat": {"id": 42, "type": "private"},
			"date": 1700000000,
			"photo": [{"file_id": "p1", "file_unique_id": "u1", "width": 10, "height": 10}],
			"caption": "hi"
		}
	}`

	var update Update
	require.NoError(t, json.Unmarshal([]byte(raw), &update))
	require.NotNil(t, update.Message)

	sender, ok := update.Sender()
	require.True(t, ok)
	assert.Equal(t, int64(42), sender.ID)
	assert.Equal(t, "uk", sender.LanguageCode)
	assert.Equal(t, "Ann", sender.DisplayName())

	draft := MediaFromMessage(update.Message)
	require.NotNil(t, draft)
	assert.Equal(t, "p1", draft.FileID)
}

func TestUpdate_Sender(t *testing.T) {
	inline := Update{InlineQuery: &InlineQuery{From: User{ID: 1, Username: "a"}}}
	sender, ok := inline.Sender()
	require.True(t, ok)
	assert.Equal(t, "a", sender.DisplayName())

	member := Update{MyChatMember: &ChatMemberUpdated{From: User{ID: 2}}}
	sender, ok = member.Sender()
	require.True(t, ok)
	assert.Equal(t, int64(2), sender.ID)

	_, ok = (&Update{}).Sender()
	assert.False(t, ok)
}
