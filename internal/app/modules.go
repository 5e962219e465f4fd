package app

import (
	"github.com/specialistvlad/releasegrid/internal/registry"
	"github.com/specialistvlad/releasegrid/modules/artifacts"
	"github.com/specialistvlad/releasegrid/modules/build_package"
	"github.com/specialistvlad/releasegrid/modules/checkout"
	"github.com/specialistvlad/releasegrid/modules/env_vars"
	"github.com/specialistvlad/releasegrid/modules/print"
	"github.com/specialistvlad/releasegrid/modules/publish"
	"github.com/specialistvlad/releasegrid/modules/run"
	"github.com/specialistvlad/releasegrid/modules/setup_runtime"
)

// coreModules is the definitive list of all modules that are compiled into
// the releasegrid binary.
var coreModules = []registry.Module{
	&checkout.Module{},
	&setup_runtime.Module{},
	&build_package.Module{},
	&artifacts.Module{},
	&publish.Module{},
	&run.Module{},
	&env_vars.Module{},
	&print.Module{},
}
