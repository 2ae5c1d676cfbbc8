/*
Package dsl provides a Go DSL for programmatically constructing dialogue graphs.

It allows call sequences to be defined with a type-safe, fluent builder instead of
authored YAML or Markdown files. This is how the built-in call graphs are written, and
it is handy in unit tests.

Nodes are chained in declaration order unless Go or Terminal says otherwise.

Example usage:

	b := dsl.New("bugcall.stage1")

	b.Media("ring").
		Clip("bugcall/ring.webm").
		Fallback(3 * time.Second).
		Glitch()

	b.Beat("static").
		Image("bugcall/static.png").
		Text("...can you hear me?")

	b.Media("hangup").
		Fallback(2 * time.Second).
		Shake(0.8, 600*time.Millisecond)

	graph, err := b.Build()
*/
package dsl
