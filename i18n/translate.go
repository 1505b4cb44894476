// Package i18n renders reply message keys in the user's language.
package i18n

import (
	"strings"
)

// DefaultLanguage is used for unknown or missing language codes.
const DefaultLanguage = "en"

var translations = map[string]map[string]string{
	"en": {
		"start":             "Hi. I will be the one keeping your media safe and always available.",
		"delete":            "Now send me all the media you want to delete. Send /cancel to cancel",
		"cancelled":         "Successfully canceled",
		"finish deleting":   "Done deleting",
		"not recognized":    "Sorry, I don't recognize that media.",
		"added":             "Successfully added",
		"duplicate":         "You already have that in your collection",
		"deleted":           "Successfully deleted. Send next or /done to stop",
		"not found":         "That media was not found in your collection",
		"describe":          "Please provide a description for this media. Type /cancel to cancel",
		"check description": "Send me the media whose description you want to see. Send /cancel to cancel",
		"description":       "Description: {description}",
		"empty":             "No media found. Click here to open bot's chat",
		"open":              "Click here to open bot's chat",
		"error":             "Something went wrong. Please try again later",
	},
	"uk": {
		"start":             "Привіт. Я буду зберігати твої медіа в безпеці і під рукою",
		"delete":            "Тепер надішли мені всі медіа, які ти хочеш видалити. Надішли /cancel, щоб відмінити",
		"cancelled":         "Успішно скасовано.",
		"finish deleting":   "Видалення завершено",
		"not recognized":    "Вибач, я не можу розпізнати дане медіа",
		"added":             "Успішно додано",
		"duplicate":         "Ти вже маєш це в своїй колекції",
		"deleted":           "Успішно видалено. Надішли /done, щоб завершити",
		"not found":         "Це медіа не знайдено в твоїй колекції",
		"describe":          "Надай опис цьому медіа. Надішли /cancel, щоб скасувати",
		"check description": "Надішли медіа, опис якого хочеш побачити. Надішли /cancel, щоб скасувати",
		"description":       "Опис: {description}",
		"empty":             "Нічого не знайдено. Натисни тут, щоб відкрити чат з ботом",
		"open":              "Натисни тут, щоб відкрити чат з ботом",
		"error":             "Щось пішло не так. Спробуй пізніше",
	},
	"pl": {
		"start":             "Cześć. Będę czuwać nad bezpieczeństwem twoich mediów i ich ciągłą dostępnością.",
		"delete":            "Teraz wyślij mi wszystkie media, które chcesz usunąć. Wyślij /cancel, żeby anulować",
		"cancelled":         "Pomyślnie anulowano",
		"finish deleting":   "Usuwanie zakończono",
		"not recognized":    "Przepraszam, nie rozpoznaję tego media",
		"added":             "Pomyślnie dodano",
		"duplicate":         "Masz to już w swojej kolekcji",
		"deleted":           "Pomyślnie usunięto. Wyślij kolejne albo /done, żeby zatrzymać",
		"not found":         "Tego media nie znaleziono w twojej kolekcji",
		"describe":          "Podaj opis tego nośnika. Wyślij /cancel, żeby anulować",
		"check description": "Wyślij media, których opis chcesz zobaczyć. Wyślij /cancel, żeby anulować",
		"description":       "Opis: {description}",
		"empty":             "Nie znaleziono mediów. Kliknij tutaj, aby otworzyć czat bota",
		"open":              "Kliknij tutaj, aby otworzyć czat bota",
		"error":             "Coś poszło nie tak. Spróbuj ponownie później",
	},
}

// Languages returns the supported language codes.
func Languages() []string {
	return []string{"en", "uk", "pl"}
}

// Translate renders key in lang, filling {name} placeholders from values.
// Unknown languages fall back to English; region suffixes such as "pt-BR"
// are ignored. An unknown key is returned as is.
func Translate(lang, key string, values map[string]string) string {
	table, ok := translations[normalize(lang)]
	if !ok {
		table = translations[DefaultLanguage]
	}
	text, ok := table[key]
	if !ok {
		return key
	}
	if len(values) == 0 {
		return text
	}
	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func normalize(lang string) string {
	lang = strings.ToLower(lang)
	if base, _, ok := strings.Cut(lang, "-"); ok {
		return base
	}
	return lang
}
