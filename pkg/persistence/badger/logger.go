package badger

import (
	"strings"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// badgerLoggerAdapter routes badger's printf-style logging into a named zap logger.
// Badger's own info chatter (compactions, memtable flushes) is demoted to debug.
type badgerLoggerAdapter struct {
	logger *zap.SugaredLogger
}

var _ badgerdb.Logger = (*badgerLoggerAdapter)(nil)

func newBadgerLoggerAdapter(l *zap.Logger) *badgerLoggerAdapter {
	return &badgerLoggerAdapter{logger: l.Named("badger").Sugar()}
}

func (b *badgerLoggerAdapter) Errorf(format string, args ...interface{}) {
	b.logger.Errorf(trimFormat(format), args...)
}

func (b *badgerLoggerAdapter) Warningf(format string, args ...interface{}) {
	b.logger.Warnf(trimFormat(format), args...)
}

func (b *badgerLoggerAdapter) Infof(format string, args ...interface{}) {
	b.logger.Debugf(trimFormat(format), args...)
}

func (b *badgerLoggerAdapter) Debugf(format string, args ...interface{}) {
	b.logger.Debugf(trimFormat(format), args...)
}

// badger terminates most messages with a newline, which zap would keep inside the msg field.
func trimFormat(format string) string {
	return strings.TrimRight(format, "\n")
}
