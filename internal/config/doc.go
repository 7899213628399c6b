// Package config defines the format-agnostic build definition: the named
// nodes of a build graph, how they are wired together and which one is the
// output. Concrete loaders for HCL and YAML live in their own packages and
// hand back a *Model with every expression already evaluated.
package config
