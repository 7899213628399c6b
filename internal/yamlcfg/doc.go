// Package yamlcfg loads build definitions written in YAML into a
// config.Model. It reads the same graph as the hcl package in a flatter
// form:
//
//	nodes:
//	  - source: src
//	    path: src
//	  - transform: scripts
//	    input: src
//	    plugin: replace
//	    accept: [".js"]
//	    options:
//	      pattern: __VERSION__
//	      with: ${version}
//	    except_env: [test]
//	  - merge: site
//	    inputs: [src, scripts]
//	output: site
//
// ${name} in any string value is replaced with the variable name; ${env}
// is the build environment. only_env and except_env switch a node on or off
// per environment.
package yamlcfg
