package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Tutortoise/digit-recognition-service/models"
)

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func logTimings(logger *zap.Logger, t *models.ProcessingTimings) {
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	logger.Debug("processing times",
		zap.String("request_id", t.RequestID),
		zap.Duration("base64_decode", t.Base64Decode),
		zap.Duration("image_decode", t.ImageDecode),
		zap.Duration("grayscale", t.Grayscale),
		zap.Duration("polarity", t.Polarity),
		zap.Duration("resize", t.Resize),
		zap.Duration("preprocess", t.Preprocess),
		zap.Duration("inference", t.Inference),
		zap.Duration("postprocess", t.Postprocess),
		zap.Duration("total", t.Total),
		zap.Float64("mean_brightness", t.MeanBrightness),
		zap.Bool("inverted", t.Inverted),
	)
}
