package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	once        sync.Once
	initialized = false
)

// Init configures the global zerolog logger once for the process.
func Init(appName, logLevel string) {
	InitWithWriter(os.Stdout, appName, logLevel)
}

func InitWithWriter(out io.Writer, appName, logLevel string) {
	if initialized {
		log.Debug().Msgf("Logger already initialized!")
		return
	}
	once.Do(func() {
		if len(logLevel) == 0 {
			logLevel = "WARN"
		}
		zerolog.SetGlobalLevel(ParseLevel(logLevel))

		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "02-01-2006 15:04:05.000",
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%-6s", i))
			},
			FieldsExclude: []string{"applicationName"},
			PartsOrder: []string{
				"applicationName",
				zerolog.TimestampFieldName,
				zerolog.LevelFieldName,
				zerolog.CallerFieldName,
				zerolog.MessageFieldName,
			},
		}).With().Timestamp().Caller().Str("applicationName", appName).Logger()

		// 呼び出し元はファイル名:行番号だけにする
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			parts := strings.Split(file, "/")
			return parts[len(parts)-1] + ":" + strconv.Itoa(line)
		}

		initialized = true
		log.Info().Msg("Logger initialized!")
	})
}

// ParseLevel maps APP_LOG_LEVEL values to zerolog levels; unknown values fall back to INFO.
func ParseLevel(logLevel string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(logLevel)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	case "PANIC":
		return zerolog.PanicLevel
	case "DISABLED":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
