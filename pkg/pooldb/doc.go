// Package pooldb keeps track of which posts of which pools have been
// downloaded.
//
// The database is a single JSON file, by default under the XDG data
// directory. It is written atomically (temporary file, fsync, rename) after
// every change so an interrupted run resumes where it stopped. An unreadable
// file never stops the program: Load returns an empty database along with a
// corrupt_database error and keeps the bad file as <path>.corrupt.
//
// ImportLegacy reads the SQLite database of the previous release.
package pooldb
