package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"vincent/internal/config"
	"vincent/internal/tts"
)

type voiceLister interface {
	Voices(ctx context.Context) ([]string, error)
}

type sections struct {
	voices, langCodes, aliases bool
}

func main() {
	godotenv.Load()

	var s sections
	var url string
	fs := cli.NewFlagSet("vincent-voices", cli.ContinueOnError)
	fs.BoolVar(&s.voices, "voices", false, "List voices offered by the Kokoro server")
	fs.BoolVar(&s.langCodes, "lang-codes", false, "List Kokoro language codes and names")
	fs.BoolVar(&s.aliases, "aliases", false, "List Kokoro language aliases")
	fs.StringVar(&url, "tts-url", envOr("KOKORO_BASE_URL", config.DefaultTTSURL), "Kokoro OpenAI-compatible API base URL")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	k := tts.NewKokoro(tts.Config{
		BaseURL: url,
		APIKey:  envOr("KOKORO_API_KEY", config.DefaultTTSAPIKey),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	os.Exit(report(ctx, os.Stdout, s, url, k))
}

// report prints the requested sections; none requested means all of them.
func report(ctx context.Context, w io.Writer, s sections, url string, k voiceLister) int {
	all := !s.voices && !s.langCodes && !s.aliases

	if all || s.langCodes {
		fmt.Fprintln(w, "Language Codes:")
		for _, code := range tts.SortedLangCodes() {
			fmt.Fprintf(w, "- %s: %s\n", code, tts.LangCodes[code])
		}
		fmt.Fprintln(w)
	}

	if all || s.aliases {
		fmt.Fprintln(w, "Language Aliases:")
		for _, alias := range tts.SortedAliases() {
			fmt.Fprintf(w, "- %s -> %s\n", alias, tts.LangAliases[alias])
		}
		fmt.Fprintln(w)
	}

	if all || s.voices {
		voices, err := k.Voices(ctx)
		if err != nil {
			fmt.Fprintf(w, "Could not list voices from %s: %v\n", url, err)
			return 1
		}
		fmt.Fprintf(w, "Voices (%d):\n", len(voices))
		for _, v := range voices {
			fmt.Fprintf(w, "- %s\n", v)
		}
	}

	return 0
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
