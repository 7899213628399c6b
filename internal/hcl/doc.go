// Package hcl loads build definitions written in HCL into a config.Model.
//
// A definition declares named source, transform, observe and merge blocks
// plus exactly one output block:
//
//	source "src" {
//	  path = "src"
//	}
//
//	transform "scripts" {
//	  input   = "src"
//	  plugin  = "replace"
//	  accept  = [".js"]
//	  options = { version = var.version }
//	  enabled = env != "test"
//	}
//
//	merge "site" {
//	  inputs = ["src", "scripts"]
//	}
//
//	output {
//	  node = "site"
//	}
//
// Expressions may read the variable env and any variable passed to Load
// under var, and call a small set of string functions.
package hcl
