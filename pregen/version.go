/*

Package pregen contains values which are pre-generated by the release process and
compiled into the ptr6d executable.

*/
package pregen

const (
	// Version is auto-generated from ChangeLog.md
	Version = "v0.1.0"
	// ReleaseDate is also auto-generated from ChangeLog.md
	ReleaseDate = "2026-08-31"
)
