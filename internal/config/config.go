package config

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	KeyAppName               = "APP_NAME"
	KeyAppLogLevel           = "APP_LOG_LEVEL"
	KeyAppPort               = "APP_PORT"
	KeyPredictBaseURL        = "PREDICT_BASE_URL"
	KeyPredictTimeoutSeconds = "PREDICT_TIMEOUT_SECONDS"
	KeyPreviewMaxEdge        = "PREVIEW_MAX_EDGE"
	KeySessionIdleMinutes    = "SESSION_IDLE_MINUTES"
)

type Env struct {
	AppName        string
	AppLogLevel    string
	AppPort        int
	PredictBaseURL string
	PredictTimeout time.Duration
	PreviewMaxEdge int
	SessionIdle    time.Duration
}

// Addr is the listen address for the web front.
func (e Env) Addr() string {
	return fmt.Sprintf(":%d", e.AppPort)
}

var (
	initialized bool
	once        sync.Once
	instance    Env
	initError   error
)

// SetDefaults registers the fallback values. Load calls it, tests may call it after viper.Reset.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAppName, "tomato-demo")
	v.SetDefault(KeyAppLogLevel, "INFO")
	v.SetDefault(KeyAppPort, 8080)
	v.SetDefault(KeyPredictBaseURL, "http://localhost:5000")
	v.SetDefault(KeyPredictTimeoutSeconds, 30)
	v.SetDefault(KeyPreviewMaxEdge, 300)
	v.SetDefault(KeySessionIdleMinutes, 30)
}

// Load reads the environment through v and validates every value.
func Load(v *viper.Viper) (Env, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	port := v.GetInt(KeyAppPort)
	if port <= 0 || port > 65535 {
		return Env{}, fmt.Errorf("invalid %s: %q", KeyAppPort, v.GetString(KeyAppPort))
	}

	baseURL := strings.TrimSpace(v.GetString(KeyPredictBaseURL))
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Env{}, fmt.Errorf("invalid %s: %q", KeyPredictBaseURL, baseURL)
	}

	timeoutSec := v.GetInt(KeyPredictTimeoutSeconds)
	if timeoutSec <= 0 {
		return Env{}, fmt.Errorf("invalid %s: %q", KeyPredictTimeoutSeconds, v.GetString(KeyPredictTimeoutSeconds))
	}

	maxEdge := v.GetInt(KeyPreviewMaxEdge)
	if maxEdge <= 0 {
		return Env{}, fmt.Errorf("invalid %s: %q", KeyPreviewMaxEdge, v.GetString(KeyPreviewMaxEdge))
	}

	idleMin := v.GetInt(KeySessionIdleMinutes)
	if idleMin <= 0 {
		return Env{}, fmt.Errorf("invalid %s: %q", KeySessionIdleMinutes, v.GetString(KeySessionIdleMinutes))
	}

	appName := strings.TrimSpace(v.GetString(KeyAppName))
	if appName == "" {
		return Env{}, fmt.Errorf("invalid %s: cannot be empty", KeyAppName)
	}

	return Env{
		AppName:        appName,
		AppLogLevel:    strings.ToUpper(strings.TrimSpace(v.GetString(KeyAppLogLevel))),
		AppPort:        port,
		PredictBaseURL: baseURL,
		PredictTimeout: time.Duration(timeoutSec) * time.Second,
		PreviewMaxEdge: maxEdge,
		SessionIdle:    time.Duration(idleMin) * time.Minute,
	}, nil
}

func InitEnv() {
	if initialized {
		log.Debug().Msg("Env already initialized!")
		return
	}
	once.Do(func() {
		instance, initError = Load(viper.GetViper())
		if initError != nil {
			log.Panic().Err(initError).Msg("failed to load env")
		}
		initialized = true
		log.Info().Msg("Env initialized!")
	})
}

func Instance() Env {
	InitEnv()
	if initError != nil {
		panic(initError)
	}
	return instance
}
