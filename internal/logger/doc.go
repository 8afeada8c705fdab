// Package logger wraps zap for the fragmenter binaries:
//   - a global sugared logger with a console encoder that sends errors to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag.
//
// Services take a context and pull the logger out of it, so every line of a
// run carries the same name and run identifier.
package logger
