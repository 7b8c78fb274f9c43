package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{"debug", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"DISABLED", zerolog.Disabled},
		{"verbose", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestInitWithWriter(t *testing.T) {
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	InitWithWriter(&buf, "tomato-test", "INFO")
	log.Info().Msg("hello tomato")

	out := buf.String()
	assert.Contains(t, out, "tomato-test")
	assert.Contains(t, out, "hello tomato")
	assert.Contains(t, out, "INFO")

	// 二回目は無視される
	InitWithWriter(&bytes.Buffer{}, "other", "DEBUG")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
