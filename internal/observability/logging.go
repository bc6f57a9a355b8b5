package observability

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// SetupLogging configures the global logger. Unknown levels fall back to info;
// format "json" selects the JSON formatter, anything else the text formatter.
func SetupLogging(level, format string, out io.Writer) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if out != nil {
		log.SetOutput(out)
	}
}
