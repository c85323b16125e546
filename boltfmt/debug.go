package boltfmt

import (
	"fmt"
	"strings"

	"github.com/andreyvit/saveable"
)

const indentStep = "  "

// Dump renders the datasets and nested groups under n, one per line, with
// decoded payloads. Intended for debugging and tests.
func Dump(n *Node) string {
	var buf strings.Builder
	dumpGroup(&buf, "", n)
	return buf.String()
}

func dumpGroup(w *strings.Builder, indent string, n *Node) {
	st := n.g.Stats()
	if n.g.Get([]byte(groupMetaKey)) != nil {
		st.KeyN--
	}
	fmt.Fprintf(w, "%s%s/ (%d datasets, %d groups)\n", indent, n.name, st.KeyN, st.GroupN)
	indent += indentStep
	_ = n.g.ForEach(func(k, v []byte) error {
		if string(k) == groupMetaKey {
			return nil
		}
		if v == nil {
			if g := n.g.Group(k); g != nil {
				dumpGroup(w, indent, newNode(string(k), n, g))
			}
			return nil
		}
		rec, err := decodeRecord(v)
		if err != nil {
			fmt.Fprintf(w, "%s%s: <%v>\n", indent, k, err)
			return nil
		}
		fmt.Fprintf(w, "%s%s [%s %s %s] = %s\n", indent, k, rec.Type, rec.Role, rec.Elem, dumpPayload(rec))
		return nil
	})
}

func dumpPayload(rec *record) string {
	meta, err := rec.meta()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	if meta.Type.IsIterable() || meta.Type == saveable.KindDict {
		items, err := decodeArrayPayload(meta.Elem, rec.Data)
		if err != nil {
			return fmt.Sprintf("<%v>", err)
		}
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprintf("%#v", item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	v, err := decodeScalarPayload(meta.Type, rec.Data)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return fmt.Sprintf("%#v", v)
}
