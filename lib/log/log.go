// Copyright 2018 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log wraps go-kit's leveled logger.
//
// Three output formats are available: a colored development format, logfmt and JSON.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-logfmt/logfmt"
)

type Logger = log.Logger
type Option = level.Option

// Format names accepted by New.
const (
	FormatDev    = "dev"
	FormatLogfmt = "logfmt"
	FormatJSON   = "json"
)

// New creates a logger from the log section of the configuration.
//
// An empty format falls back to logfmt, an empty level to info.
func New(w io.Writer, format, lvl string) (Logger, error) {
	opt, err := ParseLevel(lvl)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case FormatDev:
		return NewDevLogger(w, opt), nil
	case FormatJSON:
		return NewJSONLogger(w, opt), nil
	case FormatLogfmt, "":
		return NewProdLogger(w, opt), nil
	}

	return nil, fmt.Errorf("unknown log format %q", format)
}

var levelOptions = map[string]func() Option{
	"":        level.AllowInfo,
	"all":     level.AllowAll,
	"debug":   level.AllowDebug,
	"info":    level.AllowInfo,
	"warn":    level.AllowWarn,
	"warning": level.AllowWarn,
	"error":   level.AllowError,
	"none":    level.AllowNone,
}

// ParseLevel converts a level name into a filter option.
func ParseLevel(lvl string) (Option, error) {
	if opt, ok := levelOptions[strings.ToLower(lvl)]; ok {
		return opt(), nil
	}

	return nil, fmt.Errorf("unknown log level %q", lvl)
}

func NewProdLogger(w io.Writer, options ...Option) Logger {
	return level.NewFilter(stringifier{log.NewLogfmtLogger(log.NewSyncWriter(w))}, options...)
}

func NewJSONLogger(w io.Writer, options ...Option) Logger {
	return level.NewFilter(log.NewJSONLogger(log.NewSyncWriter(w)), options...)
}

func NewDevLogger(w io.Writer, options ...Option) Logger {
	return level.NewFilter(&devLogger{w: log.NewSyncWriter(w)}, options...)
}

// DefaultDevLogger writes the development format to the standard output.
func DefaultDevLogger(options ...Option) Logger {
	return NewDevLogger(os.Stdout, options...)
}

func NewNopLogger() Logger {
	return log.NewNopLogger()
}

func With(logger Logger, keyvals ...interface{}) Logger {
	return log.With(logger, keyvals...)
}

func Debug(logger Logger) Logger {
	return level.Debug(logger)
}

func Info(logger Logger) Logger {
	return level.Info(logger)
}

func Warn(logger Logger) Logger {
	return level.Warn(logger)
}

func Error(logger Logger) Logger {
	return level.Error(logger)
}

// NewStdlibAdapter turns logger into a writer for the standard library's log package.
func NewStdlibAdapter(logger Logger, options ...log.StdlibAdapterOption) io.Writer {
	return log.NewStdlibAdapter(logger, options...)
}

// ValueFormatter is a value that writes itself in the development format.
//
// The development logger prints only the value of such pairs, without the key.
type ValueFormatter interface {
	Format(w io.Writer)
}

// Colored is a value that the development logger prints in color. Other loggers print Value.
type Colored struct {
	Color *color.Color
	Value string
}

func (c Colored) Format(w io.Writer) {
	c.Color.Fprint(w, c.Value)
}

func (c Colored) String() string {
	return c.Value
}

var levelLabels = map[string]Colored{
	"debug": {Color: color.New(color.FgBlack, color.BgWhite), Value: "DEBUG"},
	"info":  {Color: color.New(color.FgWhite, color.BgBlue), Value: "INFO"},
	"warn":  {Color: color.New(color.FgWhite, color.BgYellow), Value: "WARN"},
	"error": {Color: color.New(color.FgWhite, color.BgRed), Value: "ERROR"},
}

type devRecord struct {
	buf bytes.Buffer
	enc *logfmt.Encoder
}

var devRecords = sync.Pool{
	New: func() interface{} {
		rec := &devRecord{}
		rec.enc = logfmt.NewEncoder(&rec.buf)
		return rec
	},
}

// devLogger prints formatted values first, then the rest of the pairs as logfmt.
type devLogger struct {
	w io.Writer
}

func (l *devLogger) Log(keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 == 1 {
		keyvals = append(keyvals, nil)
	}

	rec := devRecords.Get().(*devRecord)
	defer devRecords.Put(rec)
	rec.buf.Reset()
	rec.enc.Reset()

	var plain []interface{}
	for i := 0; i < len(keyvals); i += 2 {
		k, v := keyvals[i], keyvals[i+1]
		if k == level.Key() {
			if label, ok := levelLabels[fmt.Sprint(v)]; ok {
				v = label
			}
		}

		if f, ok := v.(ValueFormatter); ok {
			f.Format(&rec.buf)
			rec.buf.WriteByte(' ')
			continue
		}
		plain = append(plain, stringify(k), stringify(v))
	}

	if len(plain) > 0 {
		if err := rec.enc.EncodeKeyvals(plain...); err != nil {
			return err
		}
	}
	if err := rec.enc.EndRecord(); err != nil {
		return err
	}

	_, err := l.w.Write(rec.buf.Bytes())

	return err
}

// stringifier formats compound values before they reach the logfmt encoder, which rejects them.
type stringifier struct {
	next Logger
}

func (s stringifier) Log(keyvals ...interface{}) error {
	for i, v := range keyvals {
		keyvals[i] = stringify(v)
	}

	return s.next.Log(keyvals...)
}

func stringify(v interface{}) interface{} {
	if v == nil {
		return nil
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Array, reflect.Map, reflect.Slice:
		return fmt.Sprintf("%#v", v)
	case reflect.Struct:
		return fmt.Sprintf("%+v", v)
	}

	return v
}
