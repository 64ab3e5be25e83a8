package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	BufferSize int `env:"BUFFER_SIZE,default=64"`
	PageSize   int `env:"PAGE_SIZE,default=50"`

	EditWindow        time.Duration `env:"EDIT_WINDOW,default=15m"`
	TypingLiveness    time.Duration `env:"TYPING_LIVENESS,default=5s"`
	TypingDebounce    time.Duration `env:"TYPING_DEBOUNCE,default=2s"`
	TypingIdle        time.Duration `env:"TYPING_IDLE,default=4s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`

	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

// Words splits the comma-separated censored words list.
func (c Config) Words() []string {
	if c.CensoredWords == "" {
		return nil
	}
	var words []string
	for _, w := range strings.Split(c.CensoredWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
