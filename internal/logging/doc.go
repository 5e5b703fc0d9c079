// Package logging wraps Zap with the conventions used across plugind:
// a custom Trace level below Debug, level-aware sampling, context-carried
// correlation fields (run ID, category, plugin name), and an observer-based
// test logger.
//
// Engine packages never construct zap.Loggers directly; they accept a
// *logging.Logger (or pull one from context with FromContext) and attach
// fields with With/Named.
package logging
