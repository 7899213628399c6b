package app

import (
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/modules/env_vars"
	"github.com/specialistvlad/gobblego/modules/exclude"
	"github.com/specialistvlad/gobblego/modules/grab"
	"github.com/specialistvlad/gobblego/modules/gzip"
	"github.com/specialistvlad/gobblego/modules/include"
	"github.com/specialistvlad/gobblego/modules/moveto"
	"github.com/specialistvlad/gobblego/modules/print"
	"github.com/specialistvlad/gobblego/modules/replace"
	"github.com/specialistvlad/gobblego/modules/uppercase"
)

// coreModules is the definitive list of all plugins that are compiled into
// the gobble binary.
var coreModules = []registry.Module{
	&env_vars.Module{},
	&exclude.Module{},
	&grab.Module{},
	&gzip.Module{},
	&include.Module{},
	&moveto.Module{},
	&print.Module{},
	&replace.Module{},
	&uppercase.Module{},
}

// CoreModules returns a copy of the built-in plugin modules, for callers that
// register their own plugins next to them.
func CoreModules() []registry.Module {
	return append([]registry.Module(nil), coreModules...)
}
