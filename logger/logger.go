package logger

import (
	"go.uber.org/zap"
)

// Log is the process-wide logger. It defaults to a nop logger so library
// code and tests can log without calling Init.
var Log = zap.NewNop().Sugar()

func Init() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}
