package docstore

import (
	"fmt"
	"sort"
	"strings"
)

// SplitPath splits a document path into its collection path and document
// ID. "chats/alice_bob/messages/m1" becomes ("chats/alice_bob/messages",
// "m1").
func SplitPath(path string) (collection, id string, err error) {
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("invalid document path %q", path)
	}
	return path[:i], path[i+1:], nil
}

// JoinPath appends a document ID to a collection path.
func JoinPath(collection, id string) string {
	return collection + "/" + id
}

// SortDocuments orders docs in place according to q and truncates to
// q.Limit. Mixed-type order fields compare by their string form; numeric
// fields compare numerically whether the backend returned int64 or float64.
func SortDocuments(docs []Document, q Query) []Document {
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			less := lessValue(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy])
			if q.Descending {
				return lessValue(docs[j].Fields[q.OrderBy], docs[i].Fields[q.OrderBy])
			}
			return less
		})
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

func lessValue(a, b any) bool {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return af < bf
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
