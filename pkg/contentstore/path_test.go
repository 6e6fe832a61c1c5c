package contentstore

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRecordPath(t *testing.T) {
	c := qt.New(t)

	c.Check(RecordPath("kb-1", "doc-42"), qt.Equals, "content/kb-1/doc-42.json")
}
