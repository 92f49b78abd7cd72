// Package resource maps integer handles to opened objects.
//
// Message clients cannot hold Go pointers, so the dispatcher stores opened
// files and version readers in a Table and hands out Handle values. Handle
// 0 is never issued. Freed handles are reused.
//
//	table := resource.NewTable()
//	files := resource.NewTyped[*zbox.File](table, resource.KindFile)
//
//	h, _ := files.Insert(f)
//	f, ok := files.Get(h)
//	f, ok = files.Remove(h)
//
// A handle only resolves through the kind it was inserted with, so a file
// handle never yields a version reader.
//
// Observers receive EventCreated and EventDropped notifications. Close
// drops every object, closing values that implement Closer.
package resource
