// Package logx is the messenger's structured logger, a thin layer over
// zerolog.
//
// A process has at most two sinks: a console on stdout and a JSON file.
// Service.Apply swaps level and sinks at runtime and every Logger derived
// from the Service follows.
package logx
