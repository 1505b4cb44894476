package telegram

import "github.com/poiesic/mediastash/core"

// MediaFromMessage returns the media a message carries as a draft, or nil
// for a message without any. Photos use the largest size. Animations are
// checked before documents since Telegram sets both for a GIF.
func MediaFromMessage(msg *Message) *core.Draft {
	if msg == nil {
		return nil
	}

	var (
		mediaType core.MediaType
		fileID    string
	)
	switch {
	case len(msg.Photo) > 0:
		mediaType, fileID = core.MediaTypePhoto, largestPhoto(msg.Photo).FileID
	case msg.Animation != nil:
		mediaType, fileID = core.MediaTypeGIF, msg.Animation.FileID
	case msg.Document != nil:
		mediaType, fileID = core.MediaTypeDocument, msg.Document.FileID
	case msg.Audio != nil:
		mediaType, fileID = core.MediaTypeAudio, msg.Audio.FileID
	case msg.Voice != nil:
		mediaType, fileID = core.MediaTypeVoice, msg.Voice.FileID
	case msg.Video != nil:
		mediaType, fileID = core.MediaTypeVideo, msg.Video.FileID
	case msg.Sticker != nil:
		mediaType, fileID = core.MediaTypeSticker, msg.Sticker.FileID
	default:
		return nil
	}

	draft := &core.Draft{Type: mediaType, FileID: fileID}
	if msg.Caption != "" {
		caption := msg.Caption
		draft.Caption = &caption
	}
	return draft
}

func largestPhoto(sizes []PhotoSize) PhotoSize {
	best := sizes[0]
	for _, size := range sizes[1:] {
		if size.Width*size.Height > best.Width*best.Height {
			best = size
		}
	}
	return best
}
