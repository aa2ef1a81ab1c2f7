// Package logger wraps zap for the daemon. It keeps one global sugared
// logger with a console encoder, carries loggers through contexts
// (ToContext/FromContext/WithName/WithKV/WithFields) and exposes leveled
// helpers (Info, Infof, InfoKV and friends) that read the logger back out
// of the context.
//
// Components never hold a logger of their own; they take a context and log
// through it, so callers control naming and attached fields.
package logger
