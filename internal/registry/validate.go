package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/gobblego/internal/ctxlog"
)

// ValidateRegistry checks that every plugin exposes at least one callable
// and that its defaults only use keys it declares.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, p := range r.plugins {
		if !p.Transforms() && !p.Observes() {
			errs = append(errs, fmt.Sprintf("plugin '%s': no transform or observe function", name))
			continue
		}
		if p.File != nil && (p.Dir != nil || p.DirCallback != nil) {
			errs = append(errs, fmt.Sprintf("plugin '%s': declares both per-file and directory transforms", name))
		}
		if p.Dir != nil && p.DirCallback != nil {
			errs = append(errs, fmt.Sprintf("plugin '%s': declares both blocking and callback directory transforms", name))
		}
		if p.Observe != nil && p.ObserveCallback != nil {
			errs = append(errs, fmt.Sprintf("plugin '%s': declares both blocking and callback observers", name))
		}
		if p.File == nil && (len(p.Accept) > 0 || p.Ext != "") {
			logger.Warn("Plugin sets accept/ext defaults but is not a per-file plugin; they will be ignored.", "plugin", name)
		}
		for key := range p.Defaults {
			if !p.Accepts(key) {
				errs = append(errs, fmt.Sprintf("plugin '%s': default option '%s' is not among its declared keys", name, key))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
