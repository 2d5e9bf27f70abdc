// Package agentlog adapts go.uber.org/zap to jobs.Logger so the job
// engine stays decoupled from the concrete logging library while the
// rest of the agent gets structured, leveled logs.
package agentlog

import (
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bmu/internal/jobs"
)

// New builds a production zap logger writing to logDir/bmu.log as well
// as stderr, named "bmu" for every record it emits.
func New(logDir string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr", filepath.Join(logDir, "bmu.log")}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("bmu"), nil
}

// Adapter implements jobs.Logger over a *zap.SugaredLogger-free
// *zap.Logger, translating each jobs.Field into a zap.Field on every call.
type Adapter struct {
	z *zap.Logger
}

func Wrap(z *zap.Logger) Adapter { return Adapter{z: z} }

func (a Adapter) Info(msg string, fields ...jobs.Field)  { a.z.Info(msg, toZap(fields)...) }
func (a Adapter) Warn(msg string, fields ...jobs.Field)  { a.z.Warn(msg, toZap(fields)...) }
func (a Adapter) Error(msg string, fields ...jobs.Field) { a.z.Error(msg, toZap(fields)...) }

func toZap(fields []jobs.Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}
