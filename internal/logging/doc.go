// Package logging provides file-based logging with rotation for dewey.
// The CLI sets it up for every command with DefaultConfig: JSON logs are
// written at info level to dewey.log under DefaultLogDir ($DEWEY_HOME/logs,
// or ~/.dewey/logs when DEWEY_HOME is unset), rotated at 10 MB, and also
// copied to stderr.
//
// The --debug flag switches to DebugConfig, which is the same but logs at
// debug level.
package logging
