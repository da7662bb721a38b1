// Package clipboard copies agent output to the system clipboard.
package clipboard

import "github.com/atotto/clipboard"

// Write replaces the clipboard contents with text.
func Write(text string) error {
	return clipboard.WriteAll(text)
}
