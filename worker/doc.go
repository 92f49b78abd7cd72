// Package worker dispatches JSON messages to a zbox.Zbox.
//
// A message names a scope (zbox, repo, file or versionReader), a type
// within the scope, an optional object handle and optional params:
//
//	{"id":1,"scope":"zbox","type":"openRepo","params":{"uri":"mem://a","pwd":"p","opts":{"create":true}}}
//	{"id":2,"scope":"repo","type":"createFile","params":"/hello.txt"}
//	{"id":3,"scope":"file","type":"writeOnce","object":1,"params":{"text":"hello"}}
//
// The reply echoes the message with result or error set. Failures carry
// the bridged engine code and rendered message. Opened files and version
// readers are tracked in a resource.Table and addressed by handle; closing
// the repository logs a warning when any remain open.
//
// Serve runs the dispatcher over a stream of newline-delimited messages.
// Schema and ParamsSchema describe the message format as JSON Schema.
package worker
