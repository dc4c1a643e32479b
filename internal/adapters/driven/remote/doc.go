// Package remote downloads content for cells whose bytes live at a URL.
// Downloads are throttled so opening a board full of remote cells does
// not hammer the origin.
package remote
