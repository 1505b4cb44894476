package telegram

import (
	"fmt"
	"strconv"

	"github.com/poiesic/mediastash/core"
)

// InlineQueryResult is one entry of an answerInlineQuery call. Which file ID
// field is set depends on Type. Cached results reference files already on
// Telegram's servers, so nothing is uploaded.
type InlineQueryResult struct {
	Type                string               `json:"type"`
	ID                  string               `json:"id"`
	Title               string               `json:"title,omitempty"`
	Description         string               `json:"description,omitempty"`
	Caption             string               `json:"caption,omitempty"`
	PhotoFileID         string               `json:"photo_file_id,omitempty"`
	DocumentFileID      string               `json:"document_file_id,omitempty"`
	AudioFileID         string               `json:"audio_file_id,omitempty"`
	VoiceFileID         string               `json:"voice_file_id,omitempty"`
	VideoFileID         string               `json:"video_file_id,omitempty"`
	StickerFileID       string               `json:"sticker_file_id,omitempty"`
	GifFileID           string               `json:"gif_file_id,omitempty"`
	InputMessageContent *InputMessageContent `json:"input_message_content,omitempty"`
}

// InputMessageContent is the text an article result sends when picked.
type InputMessageContent struct {
	MessageText string `json:"message_text"`
}

// InlineQueryResultsButton is shown above the results. StartParameter
// opens a private chat with the bot and sends /start with it.
type InlineQueryResultsButton struct {
	Text           string `json:"text"`
	StartParameter string `json:"start_parameter,omitempty"`
}

// ResultFromItem builds the inline result for a stored media item. The
// result ID is the media ID and the title is the description.
func ResultFromItem(item *core.MediaItem) (InlineQueryResult, error) {
	result := InlineQueryResult{
		Type:    string(item.Type),
		ID:      strconv.FormatInt(int64(item.MediaID), 10),
		Title:   item.Description,
		Caption: item.CaptionText(),
	}

	switch item.Type {
	case core.MediaTypePhoto:
		result.PhotoFileID = item.FileID
	case core.MediaTypeDocument:
		result.DocumentFileID = item.FileID
	case core.MediaTypeAudio:
		// Audio results take their title from the file.
		result.Title = ""
		result.AudioFileID = item.FileID
	case core.MediaTypeVoice:
		result.VoiceFileID = item.FileID
	case core.MediaTypeVideo:
		result.VideoFileID = item.FileID
	case core.MediaTypeSticker:
		result.Title, result.Caption = "", ""
		result.StickerFileID = item.FileID
	case core.MediaTypeGIF:
		result.GifFileID = item.FileID
	case core.MediaTypeArticle:
		result.Caption = ""
		result.Description = item.FileID
		result.InputMessageContent = &InputMessageContent{MessageText: item.FileID}
	default:
		return InlineQueryResult{}, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, item.Type)
	}
	return result, nil
}
