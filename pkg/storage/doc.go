// Package storage manages the folder a pool is downloaded into.
//
// A pool folder is named "{Pool Name} by {Artist}" with characters that are
// invalid in Windows file names removed. It holds one file per post named
// after the post's page ({page}.{ext}) and an internet shortcut
// ({folder}.url) pointing back at the pool page, written once.
//
// Media is streamed to a temporary file in the same folder and renamed into
// place. Renumber moves existing files when a pool's order changed remotely,
// staging every file under a temporary name first so overlapping renames
// such as swapping two pages are safe.
package storage
