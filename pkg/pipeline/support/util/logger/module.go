package logger

import "go.uber.org/fx"

// Module is an Fx module that routes Fx's own logging through this logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)
