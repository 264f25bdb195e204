package tts

import "sort"

// LangCodes are the single-letter Kokoro pipeline languages.
var LangCodes = map[string]string{
	"a": "American English",
	"b": "British English",
	"e": "es",
	"f": "fr-fr",
	"h": "hi",
	"i": "it",
	"j": "Japanese",
	"p": "pt-br",
	"z": "Mandarin Chinese",
}

// LangAliases maps common locale names to Kokoro codes.
var LangAliases = map[string]string{
	"en-us": "a",
	"en-gb": "b",
	"es":    "e",
	"fr-fr": "f",
	"hi":    "h",
	"it":    "i",
	"pt-br": "p",
	"ja":    "j",
	"zh":    "z",
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortedLangCodes returns LangCodes keys in order.
func SortedLangCodes() []string { return sortedKeys(LangCodes) }

// SortedAliases returns LangAliases keys in order.
func SortedAliases() []string { return sortedKeys(LangAliases) }
