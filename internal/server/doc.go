// Package server manages the HTTP surface: non-blocking startup,
// graceful shutdown on SIGINT/SIGTERM, and the API routes backed by
// the chat service.
//
// Manager wraps net/http.Server with lifecycle control; NewRouter
// builds the handler tree (ask, history, health, metrics) with
// request instrumentation.
package server
