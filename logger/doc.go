// Package logger provides structured logging for imgprep using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//
// # Usage
//
//	log := logger.Get("pipeline")
//	log.Info("stage executing", logger.Fields(logger.FieldStage, "Map#2"))
package logger
