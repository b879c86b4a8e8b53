// Package logx is a thin structured-logging facade over zerolog.
//
// It exists so application packages depend on a stable, minimal API
// (Logger + Field helpers) instead of zerolog directly.
package logx
