// Package telegram is a small Bot API client and the update types the bot consumes.
//
// Only the parts the bot uses are modelled: incoming updates with messages,
// inline queries and membership changes, plus the sendMessage,
// answerInlineQuery and setWebhook methods.
package telegram
