// Package task drives a build graph to a destination directory, either once
// (Build) or continuously (Watch).
package task
