// Command vakeel runs the legal question-answering service.
//
// Usage:
//
//	vakeel serve                        # start the HTTP server
//	vakeel serve --config config.yaml   # with a config file
//	vakeel migrate up                   # apply database migrations
//	vakeel migrate status               # show migration state
//	vakeel coverage --term bail         # inspect corpus coverage for a term
//	vakeel health                       # probe a running server
//	vakeel version                      # print version info
package main
