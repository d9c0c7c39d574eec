package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLoggerAdapter implements fxevent.Logger on top of the engine logger.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter creates a new instance of FxLoggerAdapter.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

// LogEvent logs events from fx. Successful wiring events go to DEBUG, failures to ERROR.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	log := Logger()
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("hook", shortFunctionName(e.FunctionName)).Msg("OnStart hook failed")
		} else {
			log.Debug().Str("hook", shortFunctionName(e.FunctionName)).Str("runtime", e.Runtime.String()).Msg("OnStart hook executed")
		}
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("hook", shortFunctionName(e.FunctionName)).Msg("OnStop hook failed")
		} else {
			log.Debug().Str("hook", shortFunctionName(e.FunctionName)).Msg("OnStop hook executed")
		}
	case *fxevent.Provided:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("constructor", shortFunctionName(e.ConstructorName)).Msg("provide failed")
			return
		}
		for _, rtype := range e.OutputTypeNames {
			log.Debug().Str("type", rtype).Msg("provided")
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("function", e.FunctionName).Msg("invoke failed")
		}
	case *fxevent.Stopping:
		log.Info().Str("signal", e.Signal.String()).Msg("stopping")
	case *fxevent.RollingBack:
		log.Error().Err(e.StartErr).Msg("start failed, rolling back")
	case *fxevent.Started:
		if e.Err != nil {
			log.Error().Err(e.Err).Msg("start failed")
		} else {
			log.Info().Msg("application started")
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			log.Error().Err(e.Err).Msg("custom logger initialization failed")
		}
	}
}

// shortFunctionName strips anonymous function suffixes such as ".func1".
func shortFunctionName(funcName string) string {
	if idx := strings.LastIndex(funcName, ".func"); idx != -1 {
		return funcName[:idx]
	}
	return funcName
}
