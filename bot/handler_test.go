package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/flow"
	"github.com/poiesic/mediastash/i18n"
	"github.com/poiesic/mediastash/search"
	"github.com/poiesic/mediastash/storage"
	"github.com/poiesic/mediastash/storage/sqlite"
	"github.com/poiesic/mediastash/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	chatID int64
	text   string
}

// fakeMessenger records outgoing calls.
type fakeMessenger struct {
	mu        sync.Mutex
	sent      []sentMessage
	answers   []telegram.AnswerInlineQuery
	sendErr   error
	answerErr error
}

func (m *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string) (*telegram.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text})
	return &telegram.Message{Chat: telegram.Chat{ID: chatID}, Text: text}, nil
}

func (m *fakeMessenger) AnswerInlineQuery(_ context.Context, answer telegram.AnswerInlineQuery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answerErr != nil {
		return m.answerErr
	}
	m.answers = append(m.answers, answer)
	return nil
}

func (m *fakeMessenger) lastText(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1].text
}

const testUser int64 = 555

const lang = "en"

func newTestHandler(t *testing.T) (*Handler, *fakeMessenger, *sqlite.Repositories) {
	t.Helper()
	repos, err := sqlite.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	engine, err := flow.NewEngine(repos.Users, repos.Media, repos.State)
	require.NoError(t, err)
	searcher, err := search.NewSearcher(repos.Media)
	require.NoError(t, err)

	messenger := &fakeMessenger{}
	handler, err := NewHandler(engine, searcher, repos.Users, messenger)
	require.NoError(t, err)
	return handler, messenger, repos
}

func from() *telegram.User {
	return &telegram.User{ID: testUser, FirstName: "Test", Username: "tester", LanguageCode: lang}
}

func textUpdate(text string) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		From: from(),
		Chat: telegram.Chat{ID: testUser, Type: "private"},
		Text: text,
	}}
}

func photoUpdate(fileID string) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		From:  from(),
		Chat:  telegram.Chat{ID: testUser, Type: "private"},
		Photo: []telegram.PhotoSize{{FileID: fileID, Width: 10, Height: 10}},
	}}
}

func inlineUpdate(query, offset string) *telegram.Update {
	return &telegram.Update{InlineQuery: &telegram.InlineQuery{ID: "iq", From: *from(), Query: query, Offset: offset}}
}

func memberUpdate(status string) *telegram.Update {
	return &telegram.Update{MyChatMember: &telegram.ChatMemberUpdated{
		Chat:          telegram.Chat{ID: testUser, Type: "private"},
		From:          *from(),
		NewChatMember: telegram.ChatMember{Status: status},
	}}
}

func TestNewHandler_RequiresCollaborators(t *testing.T) {
	repos, err := sqlite.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	engine, err := flow.NewEngine(repos.Users, repos.Media, repos.State)
	require.NoError(t, err)
	searcher, err := search.NewSearcher(repos.Media)
	require.NoError(t, err)
	messenger := &fakeMessenger{}

	_, err = NewHandler(nil, searcher, repos.Users, messenger)
	assert.Equal(t, ErrEngineRequired, err)
	_, err = NewHandler(engine, nil, repos.Users, messenger)
	assert.Equal(t, ErrSearcherRequired, err)
	_, err = NewHandler(engine, searcher, nil, messenger)
	assert.Equal(t, ErrUserRepositoryRequired, err)
	_, err = NewHandler(engine, searcher, repos.Users, nil)
	assert.Equal(t, ErrMessengerRequired, err)

	handler, err := NewHandler(engine, searcher, repos.Users, messenger, WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, handler.logger)
}

func TestHandleUpdate_AddMediaConversation(t *testing.T) {
	h, messenger, repos := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photoUpdate("cat-file")))
	assert.Equal(t, i18n.Translate(lang, flow.ReplyDescribe, nil), messenger.lastText(t))

	require.NoError(t, h.HandleUpdate(ctx, textUpdate("sleepy cat")))
	assert.Equal(t, i18n.Translate(lang, flow.ReplyAdded, nil), messenger.lastText(t))
	assert.Equal(t, testUser, messenger.sent[len(messenger.sent)-1].chatID)

	item, err := repos.Media.GetMediaByFileID(ctx, "cat-file")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "sleepy cat", item.Description)

	user, err := repos.Users.GetUser(ctx, core.UserID(testUser))
	require.NoError(t, err)
	assert.Equal(t, "tester", user.Username)
}

func TestHandleUpdate_LocalizedReply(t *testing.T) {
	h, messenger, _ := newTestHandler(t)

	update := textUpdate("/start")
	update.Message.From.LanguageCode = "uk"
	require.NoError(t, h.HandleUpdate(context.Background(), update))
	assert.Equal(t, i18n.Translate("uk", flow.ReplyStart, nil), messenger.lastText(t))
}

func TestHandleUpdate_IgnoresGroupMessages(t *testing.T) {
	h, messenger, _ := newTestHandler(t)

	update := textUpdate("hello")
	update.Message.Chat = telegram.Chat{ID: -100, Type: "group"}
	require.NoError(t, h.HandleUpdate(context.Background(), update))
	assert.Empty(t, messenger.sent)
}

func TestHandleUpdate_IgnoresUnknownUpdates(t *testing.T) {
	h, messenger, _ := newTestHandler(t)
	require.NoError(t, h.HandleUpdate(context.Background(), &telegram.Update{UpdateID: 9}))
	assert.Empty(t, messenger.sent)
	assert.Empty(t, messenger.answers)
}

func TestHandleUpdate_InlineQuery(t *testing.T) {
	h, messenger, repos := newTestHandler(t)
	ctx := context.Background()

	_, err := repos.Users.AddUser(ctx, &core.User{ID: core.UserID(testUser), Username: "tester"})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, _, err := repos.Media.AddMedia(ctx, &core.MediaItem{
			UserID:      core.UserID(testUser),
			Type:        core.MediaTypePhoto,
			FileID:      fmt.Sprintf("f%d", i),
			Description: fmt.Sprintf("dog %d", i),
		})
		require.NoError(t, err)
	}

	require.NoError(t, h.HandleUpdate(ctx, inlineUpdate("dog", "")))
	require.Len(t, messenger.answers, 1)
	answer := messenger.answers[0]
	assert.Equal(t, "iq", answer.InlineQueryID)
	assert.True(t, answer.IsPersonal)
	assert.Len(t, answer.Results, search.DefaultPageSize)
	assert.Equal(t, "15", answer.NextOffset)
	assert.Nil(t, answer.Button)

	require.NoError(t, h.HandleUpdate(ctx, inlineUpdate("dog", answer.NextOffset)))
	require.Len(t, messenger.answers, 2)
	assert.Len(t, messenger.answers[1].Results, 5)
	assert.Equal(t, "", messenger.answers[1].NextOffset)
}

func TestHandleUpdate_InlineQueryNothingFound(t *testing.T) {
	h, messenger, _ := newTestHandler(t)

	require.NoError(t, h.HandleUpdate(context.Background(), inlineUpdate("unicorn", "")))
	require.Len(t, messenger.answers, 1)
	answer := messenger.answers[0]
	assert.Empty(t, answer.Results)
	require.NotNil(t, answer.Button)
	assert.Equal(t, i18n.Translate(lang, "empty", nil), answer.Button.Text)
	assert.Equal(t, StartParameter, answer.Button.StartParameter)
}

func TestHandleUpdate_InlineQueryBadOffsetNotifies(t *testing.T) {
	h, messenger, _ := newTestHandler(t)

	require.NoError(t, h.HandleUpdate(context.Background(), inlineUpdate("dog", "nope")))
	assert.Empty(t, messenger.answers)
	assert.Equal(t, i18n.Translate(lang, "error", nil), messenger.lastText(t))
}

func TestHandleUpdate_BlockedDeletesUser(t *testing.T) {
	h, messenger, repos := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photoUpdate("f1")))
	require.NoError(t, h.HandleUpdate(ctx, textUpdate("thing")))
	sentBefore := len(messenger.sent)

	require.NoError(t, h.HandleUpdate(ctx, memberUpdate(telegram.MemberStatusKicked)))
	assert.Len(t, messenger.sent, sentBefore)

	_, err := repos.Users.GetUser(ctx, core.UserID(testUser))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	count, err := repos.Media.CountMedia(ctx, storage.Fields{"user_id": testUser})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Unblocking registers the user again.
	require.NoError(t, h.HandleUpdate(ctx, memberUpdate(telegram.MemberStatusMember)))
	user, err := repos.Users.GetUser(ctx, core.UserID(testUser))
	require.NoError(t, err)
	assert.Equal(t, "tester", user.Username)
}

func TestHandleUpdate_CorruptStateReturned(t *testing.T) {
	h, messenger, repos := newTestHandler(t)
	ctx := context.Background()

	_, err := repos.Users.AddUser(ctx, &core.User{ID: core.UserID(testUser), Username: "tester"})
	require.NoError(t, err)
	require.NoError(t, repos.State.Set(ctx, core.UserID(testUser), core.StateKeyStatus, "bogus"))

	err = h.HandleUpdate(ctx, textUpdate("hello"))
	assert.ErrorIs(t, err, flow.ErrCorruptState)
	assert.Equal(t, i18n.Translate(lang, "error", nil), messenger.lastText(t))

	// /cancel recovers.
	require.NoError(t, h.HandleUpdate(ctx, textUpdate("/cancel")))
	assert.Equal(t, i18n.Translate(lang, flow.ReplyCancelled, nil), messenger.lastText(t))
}

func TestHandleUpdate_SendFailureIsLogged(t *testing.T) {
	h, messenger, _ := newTestHandler(t)
	messenger.sendErr = errors.New("network down")

	assert.NoError(t, h.HandleUpdate(context.Background(), textUpdate("/start")))
}
