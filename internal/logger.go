package internal

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Importance string

const (
	Info    Importance = " "
	Warning Importance = "?"
	Error   Importance = "!"
	Raw     Importance = "-"
)

type Logger struct {
	database  Database
	debugMode bool
	writer    chan *LogEvent
	out       zerolog.Logger
}

type LogEvent struct {
	Importance Importance
	Message    *FeatureLogMessage
}

func NewLogger() *Logger {
	return NewLoggerWithOutput(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
}

func NewLoggerWithOutput(w io.Writer) *Logger {
	logger := &Logger{
		debugMode: false,
		writer:    make(chan *LogEvent, 100),
		out:       zerolog.New(w).With().Timestamp().Logger(),
	}
	go logger.startWriter()
	return logger
}

func (l *Logger) startWriter() {
	for {
		event := <-l.writer

		message := event.Message
		l.logLine(event.Importance, message)

		if l.database != nil {
			if err := l.database.WriteLogMessage(message); err != nil {
				l.out.Error().Err(err).Msg("write log to database failed")
			}
		}
	}
}

func (l *Logger) SetDebugMode(debugMode bool) {
	l.debugMode = debugMode
}

func (l *Logger) SetDatabase(database Database) {
	l.database = database
}

func logTime(t time.Time) string {
	timeString := fmt.Sprintf("%d-%02d-%02d %02d:%02d:%02d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	return timeString
}

func (l *Logger) FeatureEvent(feature, id, text string) {
	l.logEvent(Info, l.newFeatureLogMessage(feature, id, text))
}

func (l *Logger) logEvent(importance Importance, message *FeatureLogMessage) {
	if message.ChargePointId == "" {
		message.ChargePointId = "*"
	}
	message.Importance = string(importance)
	event := &LogEvent{
		Importance: importance,
		Message:    message,
	}
	l.writer <- event
}

func (l *Logger) Debug(text string) {
	l.logEvent(Info, l.newFeatureLogMessage("info", "", text))
}

func (l *Logger) Warn(text string) {
	l.logEvent(Warning, l.newFeatureLogMessage("warning", "", text))
}

func (l *Logger) Error(text string, err error) {
	l.logEvent(Error, l.newFeatureLogMessage("error", "", fmt.Sprintf("%s: %s", text, err)))
}

func (l *Logger) RawDataEvent(direction, data string) {
	if l.debugMode {
		l.logEvent(Raw, l.newFeatureLogMessage("raw", "", fmt.Sprintf("%s: %s", direction, data)))
	}
}

func (l *Logger) logLine(importance Importance, message *FeatureLogMessage) {
	var event *zerolog.Event
	switch importance {
	case Warning:
		event = l.out.Warn()
	case Error:
		event = l.out.Error()
	case Raw:
		event = l.out.Debug()
	default:
		event = l.out.Info()
	}
	event.Str("id", message.ChargePointId).Str("feature", message.Feature).Msg(message.Text)
}

func (l *Logger) newFeatureLogMessage(feature, id, text string) *FeatureLogMessage {
	now := time.Now()
	return &FeatureLogMessage{
		Time:          logTime(now),
		TimeStamp:     now.UTC(),
		Text:          text,
		Feature:       feature,
		ChargePointId: id,
	}
}
