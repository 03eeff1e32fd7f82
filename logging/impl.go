package logging

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}

	return &impl{
		name:      newName,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var errs []error
	for _, appender := range imp.appenders {
		if err := appender.Sync(); err != nil {
			errs = append(errs, err)
		}
	}

	return multierr.Combine(errs...)
}

func (imp *impl) shouldLog(logLevel Level) bool {
	return logLevel >= imp.level.Get()
}

func (imp *impl) newEntry(logLevel Level, msg string) zapcore.Entry {
	entry := zapcore.Entry{
		Level:      logLevel.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     getCaller(),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	return entry
}

func (imp *impl) log(entry zapcore.Entry, fields []zapcore.Field) {
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprint(os.Stderr, err)
		}
	}
}

func (imp *impl) format(logLevel Level, args ...interface{}) {
	if !imp.shouldLog(logLevel) {
		return
	}
	imp.log(imp.newEntry(logLevel, fmt.Sprint(args...)), nil)
}

func (imp *impl) formatf(logLevel Level, template string, args ...interface{}) {
	if !imp.shouldLog(logLevel) {
		return
	}
	imp.log(imp.newEntry(logLevel, fmt.Sprintf(template, args...)), nil)
}

func (imp *impl) formatw(logLevel Level, msg string, keysAndValues ...interface{}) {
	if !imp.shouldLog(logLevel) {
		return
	}

	fields := make([]zapcore.Field, 0, len(keysAndValues)/2)
	for keyIdx := 0; keyIdx < len(keysAndValues); keyIdx += 2 {
		keyObj := keysAndValues[keyIdx]
		// A trailing key without a value is logged under a placeholder, mirroring zap's sugared logger.
		if keyIdx == len(keysAndValues)-1 {
			fields = append(fields, zap.Any("ignored", keyObj))
			break
		}
		keyStr, ok := keyObj.(string)
		if !ok {
			keyStr = fmt.Sprint(keyObj)
		}
		fields = append(fields, zap.Any(keyStr, keysAndValues[keyIdx+1]))
	}

	imp.log(imp.newEntry(logLevel, msg), fields)
}

func (imp *impl) Debug(args ...interface{}) {
	imp.format(DEBUG, args...)
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.formatf(DEBUG, template, args...)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.formatw(DEBUG, msg, keysAndValues...)
}

func (imp *impl) Info(args ...interface{}) {
	imp.format(INFO, args...)
}

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.formatf(INFO, template, args...)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.formatw(INFO, msg, keysAndValues...)
}

func (imp *impl) Warn(args ...interface{}) {
	imp.format(WARN, args...)
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.formatf(WARN, template, args...)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.formatw(WARN, msg, keysAndValues...)
}

func (imp *impl) Error(args ...interface{}) {
	imp.format(ERROR, args...)
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.formatf(ERROR, template, args...)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.formatw(ERROR, msg, keysAndValues...)
}

// getCaller skips the frames of this package so the entry points at the code that logged.
func getCaller() zapcore.EntryCaller {
	var ok bool
	var entryCaller zapcore.EntryCaller
	const framesToSkip = 4
	entryCaller.PC, entryCaller.File, entryCaller.Line, ok = runtime.Caller(framesToSkip)
	if !ok {
		return entryCaller
	}
	entryCaller.Defined = true
	if fn := runtime.FuncForPC(entryCaller.PC); fn != nil {
		entryCaller.Function = fn.Name()
	}

	return entryCaller
}

func callerToString(caller *zapcore.EntryCaller) string {
	return caller.TrimmedPath()
}
