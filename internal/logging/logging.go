package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"retrocade/internal/config"
)

var sink io.Writer = os.Stdout

// Init configures the global zerolog logger. When cfg.File is set, log
// output goes to a size-capped rotating file instead of stdout; Writer
// exposes whichever sink was chosen so other log producers (the HTTP
// request logger) share it.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var output io.Writer = os.Stdout
	if cfg.File != "" {
		if w, err := newRotatingWriter(cfg.File, cfg.MaxMB); err == nil {
			output = w
		}
	}
	sink = output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

func Writer() io.Writer {
	return sink
}
