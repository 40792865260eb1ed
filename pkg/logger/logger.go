package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arnavshah/assignment-engine-go/pkg/config"
)

const serviceName = "assignment-engine"

// New builds the service logger. Output is JSON in production and console text
// elsewhere unless LOG_FORMAT says otherwise.
func New(cfg *config.Config) (*zap.Logger, error) {
	return buildConfig(cfg).Build(zap.Fields(
		zap.String("service", serviceName),
		zap.String("env", cfg.Env),
	))
}

func buildConfig(cfg *config.Config) zap.Config {
	production := cfg.Env == config.EnvProduction

	var zapCfg zap.Config
	if production {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		// no stack traces on engine warnings
		zapCfg.DisableStacktrace = true
	}

	switch cfg.Log.Format {
	case "json", "console":
		zapCfg.Encoding = cfg.Log.Format
	default:
		if production {
			zapCfg.Encoding = "json"
		} else {
			zapCfg.Encoding = "console"
		}
	}

	if cfg.Log.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if zapCfg.Encoding == "console" {
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapCfg
}

// GinMiddleware logs one entry per request. The congregation is included once
// the API key middleware has resolved it.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if congregation := c.GetString("congregation"); congregation != "" {
			fields = append(fields, zap.String("congregation", congregation))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		l.Info("http_request", fields...)
	}
}
