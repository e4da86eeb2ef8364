/*
Package dsl provides a fluent builder for constructing kmol project trees in Go.

It is useful for seeding projects programmatically, in tests and in tools
that generate projects, without writing the file format by hand.

Example usage:

	b := dsl.New("deploy")
	b.Root().
		Add("setup").Content("print('installing')").
		Add("check").Content("print('ok')").Up().
		Up().
		Add("notes")

	tree, err := b.Build()
	// or persist it directly:
	err = b.Seed(ctx, codec, "deploy.kmol")
*/
package dsl
