// Package command provides typed wrappers around the Nanonis and spectrometer commands used by
// the acquisition tools.
//
// Each SPM wrapper encodes its arguments with the command's fixed layout, decodes the reply
// against the matching schema and returns the typed result together with the server's
// nanonis.ErrorRecord. Deciding whether a non-zero record aborts a higher-level operation is
// left to the caller.
package command
