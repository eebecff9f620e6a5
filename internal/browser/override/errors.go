// internal/browser/override/errors.go

// Package override re-routes a small allow-list of page operations (goto,
// click, locator().click()) through raw debugging-protocol commands while
// delegating every other operation to the wrapped native page handle.
//
// Synthesized pointer input is trusted input: pages whose listeners ignore
// programmatic clicks still react to it. That is the entire reason this
// package exists.
package override

import "fmt"

// ElementNotFoundError reports that a selector matched nothing in the page at
// evaluation time. It is a hard stop; the override layer never retries.
type ElementNotFoundError struct {
	Selector string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("no element matches selector %q", e.Selector)
}
