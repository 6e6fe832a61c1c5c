package contentstore

import "fmt"

// RecordPath returns the object key for a content record. The composite
// (kbID, documentID) key is encoded in the path so a knowledge base's
// records share a listable prefix.
func RecordPath(kbID, documentID string) string {
	return fmt.Sprintf("content/%s/%s.json", kbID, documentID)
}
