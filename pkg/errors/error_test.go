package errors

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestTerminal_MarksAndUnwraps(t *testing.T) {
	c := qt.New(t)

	base := fmt.Errorf("kb not found")
	err := Terminal(base)
	c.Check(IsTerminal(err), qt.IsTrue)
	c.Check(err.Error(), qt.Equals, "kb not found")

	// wrapping on top keeps the mark visible
	wrapped := fmt.Errorf("kb build: %w", err)
	c.Check(IsTerminal(wrapped), qt.IsTrue)
}

func TestTerminal_Nil(t *testing.T) {
	c := qt.New(t)
	c.Check(Terminal(nil), qt.IsNil)
}

func TestIsTerminal_PlainError(t *testing.T) {
	c := qt.New(t)
	c.Check(IsTerminal(fmt.Errorf("timeout")), qt.IsFalse)
}
