// Package snapshot serializes trees to JSON or BSON and loads them back.
//
// A [Document] records every node's name, own and recursive metrics and
// collection metadata. Loading rebuilds the arena with
// [tree.Tree.InsertChild] and finishes with [tree.Tree.Initialize], so the
// recursive metrics are taken from the document instead of being
// recomputed.
//
//	doc := snapshot.FromTree(t)
//	err := snapshot.WriteFile("src.json", doc)
//	...
//	doc, err := snapshot.ReadFile("src.json")
//	t, err := snapshot.Load(doc, tree.Options{Observer: engine})
//
// The codec is chosen by file extension: ".json" or ".bson".
package snapshot
