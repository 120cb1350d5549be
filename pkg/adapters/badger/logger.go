package badger

import (
	"fmt"
	"log/slog"
	"strings"
)

// slogAdapter satisfies badger.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(msg(format, args), "component", "badger")
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(msg(format, args), "component", "badger")
}

func (a *slogAdapter) Infof(format string, args ...any) {
	a.logger.Debug(msg(format, args), "component", "badger")
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(msg(format, args), "component", "badger")
}

func msg(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
