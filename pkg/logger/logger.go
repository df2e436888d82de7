package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger - общий интерфейс логирования для всех слоёв.
// Аргументы после сообщения идут парами ключ-значение.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

type zerologLogger struct {
	log zerolog.Logger
}

func New(level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return &zerologLogger{log: zl}
}

func withFields(ev *zerolog.Event, args []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	return ev
}

func (l *zerologLogger) Debug(msg string, args ...interface{}) {
	withFields(l.log.Debug(), args).Msg(msg)
}

func (l *zerologLogger) Info(msg string, args ...interface{}) {
	withFields(l.log.Info(), args).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, args ...interface{}) {
	withFields(l.log.Warn(), args).Msg(msg)
}

func (l *zerologLogger) Error(msg string, args ...interface{}) {
	withFields(l.log.Error(), args).Msg(msg)
}

func (l *zerologLogger) Fatal(msg string, args ...interface{}) {
	withFields(l.log.Fatal(), args).Msg(msg)
}
