package config

import (
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Tuning holds ingest knobs that operators may change without a restart.
type Tuning struct {
	// WriteAttempts bounds warehouse insert retries per table per request.
	WriteAttempts int `mapstructure:"writeAttempts"`
	// MaxBodyBytes caps the accepted webhook body size.
	MaxBodyBytes int64 `mapstructure:"maxBodyBytes"`
	// LogSnippetBytes caps how much of a rejected payload is logged.
	LogSnippetBytes int `mapstructure:"logSnippetBytes"`
}

func DefaultTuning() Tuning {
	return Tuning{
		WriteAttempts:   3,
		MaxBodyBytes:    1 << 20,
		LogSnippetBytes: 512,
	}
}

// TuningHolder serves the current tuning values and follows file changes.
type TuningHolder struct {
	current atomic.Value // holds Tuning
}

// NewTuningHolder reads orderlake.yml (volume-mounted, system, or working
// directory) and watches it for changes. A missing file yields defaults.
func NewTuningHolder() (*TuningHolder, error) {
	v := viper.New()

	v.SetConfigName("orderlake")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/orderlake/config")
	v.AddConfigPath("/etc/orderlake")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ORDERLAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	holder := &TuningHolder{}
	holder.current.Store(readTuning(v))

	if fileFound {
		v.OnConfigChange(func(e fsnotify.Event) {
			holder.current.Store(readTuning(v))
			log.Printf("ingest tuning reloaded from %s", e.Name)
		})
		v.WatchConfig()
	}

	return holder, nil
}

// Current returns the tuning values in effect.
func (h *TuningHolder) Current() Tuning {
	if h == nil {
		return DefaultTuning()
	}
	if t, ok := h.current.Load().(Tuning); ok {
		return t
	}
	return DefaultTuning()
}

// Store replaces the current tuning. Intended for tests.
func (h *TuningHolder) Store(t Tuning) {
	h.current.Store(sanitizeTuning(t))
}

func readTuning(v *viper.Viper) Tuning {
	t := DefaultTuning()
	if err := v.UnmarshalKey("ingest", &t); err != nil {
		log.Printf("ingest tuning unmarshal failed, keeping defaults: %v", err)
		return DefaultTuning()
	}
	return sanitizeTuning(t)
}

func sanitizeTuning(t Tuning) Tuning {
	def := DefaultTuning()
	if t.WriteAttempts <= 0 {
		t.WriteAttempts = def.WriteAttempts
	}
	if t.MaxBodyBytes <= 0 {
		t.MaxBodyBytes = def.MaxBodyBytes
	}
	if t.LogSnippetBytes <= 0 {
		t.LogSnippetBytes = def.LogSnippetBytes
	}
	return t
}
