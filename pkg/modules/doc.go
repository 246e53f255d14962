// Package modules binds configured Jsonnet programs to the metrics pipeline.
//
// A Module evaluates its program against a runtime input, decodes the
// resulting document into a manifest and renders it as exposition text. The
// Registry resolves modules by name and keeps loaded programs in a bounded
// cache. RunTests and Validate execute the test cases declared next to each
// module in the config file.
package modules
