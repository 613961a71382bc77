// Package logging provides leveled logging for media-catalog on top of the
// standard log package.
//
// Levels are DEBUG, INFO, WARN and ERROR, selected by the LOG_LEVEL
// environment variable (DEBUG=true forces debug) and adjustable with
// SetLevel. EnableFileOutput additionally writes every line to a rotating
// file managed by lumberjack.
package logging
