// Package engine embeds the Jsonnet evaluator used by modules.
//
// A module program is loaded once into an immutable Program. Every call to
// (*Program).Evaluate builds a fresh VM, binds the runtime input as the
// "input" external variable and evaluates
//
//	local s = import '<identity>';
//	s.process(std.extVar('input'))
//
// manifesting the result as JSON. Host functions registered in Options.Natives
// are reachable from Jsonnet through std.native, e.g.
// std.native("regexMatch")("(a)(b)?", "ab a").
//
// Inline programs live under the fixed identity "inline.jsonnet" and may import
// nothing but themselves. File programs are identified by their absolute path
// and may import files relative to it or from the configured library paths.
package engine
