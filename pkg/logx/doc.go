// Package logx is a thin structured-logging facade over zerolog.
//
// It exists so the rest of the codebase never imports zerolog directly:
// components take a logx.Logger value, and the logging Service can swap
// sinks and levels at runtime when the config file changes.
package logx
