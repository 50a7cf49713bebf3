// Package logging configures structured JSON logging to a rotating file under
// ~/.schemamatch/logs/, and reads those files back for the logs command.
//
// Interactive commands log to stderr as well. The MCP server over stdio logs
// to the file only, since stdout carries the protocol.
package logging
