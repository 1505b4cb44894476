package telegram

import (
	"testing"

	"github.com/poiesic/mediastash/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultFromItem(t *testing.T) {
	caption := "cap"
	base := core.MediaItem{MediaID: 9, UserID: 1, FileID: "f", Caption: &caption, Description: "red dog"}

	tests := []struct {
		mediaType core.MediaType
		check     func(t *testing.T, r InlineQueryResult)
	}{
		{core.MediaTypePhoto, func(t *testing.T, r InlineQueryResult) {
			assert.Equal(t, "f", r.PhotoFileID)
			assert.Equal(t, "red dog", r.Title)
			assert.Equal(t, "cap", r.Caption)
		}},
		{core.MediaTypeDocument, func(t *testing.T, r InlineQueryResult) { assert.Equal(t, "f", r.DocumentFileID) }},
		{core.MediaTypeAudio, func(t *testing.T, r InlineQueryResult) {
			assert.Equal(t, "f", r.AudioFileID)
			assert.Empty(t, r.Title)
		}},
		{core.MediaTypeVoice, func(t *testing.T, r InlineQueryResult) { assert.Equal(t, "f", r.VoiceFileID) }},
		{core.MediaTypeVideo, func(t *testing.T, r InlineQueryResult) { assert.Equal(t, "f", r.VideoFileID) }},
		{core.MediaTypeSticker, func(t *testing.T, r InlineQueryResult) {
			assert.Equal(t, "f", r.StickerFileID)
			assert.Empty(t, r.Caption)
		}},
		{core.MediaTypeGIF, func(t *testing.T, r InlineQueryResult) { assert.Equal(t, "f", r.GifFileID) }},
		{core.MediaTypeArticle, func(t *testing.T, r InlineQueryResult) {
			require.NotNil(t, r.InputMessageContent)
			assert.Equal(t, "f", r.InputMessageContent.MessageText)
			assert.Equal(t, "red dog", r.Title)
			assert.Empty(t, r.Caption)
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.mediaType), func(t *testing.T) {
			item := base
			item.Type = tt.mediaType
			result, err := ResultFromItem(&item)
			require.NoError(t, err)
			assert.Equal(t, string(tt.mediaType), result.Type)
			assert.Equal(t, "9", result.ID)
			tt.check(t, result)
		})
	}
}

func TestResultFromItem_Unsupported(t *testing.T) {
	_, err := ResultFromItem(&core.MediaItem{MediaID: 1, Type: "hologram", FileID: "f"})
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
}
