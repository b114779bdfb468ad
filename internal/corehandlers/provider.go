// Package corehandlers supplies the gateway's built-in methods. Only
// introspection and probe methods live here; the application's real
// built-ins are contributed by their own services.
package corehandlers

import (
	"context"
	"sort"
	"time"

	"github.com/inkwell-cms/remote-gateway/internal/remote"
)

// MethodLister enumerates the callable namespace for listMethods.
type MethodLister interface {
	MethodNames(ctx context.Context) ([]string, error)
}

// Provider is the default core-method provider. Every method is
// registered twice, under the inkwell prefix and under the legacy wiki
// prefix.
type Provider struct {
	version  string
	lister   MethodLister
	identity remote.Identity
	now      func() time.Time
}

// NewProvider creates the provider for one request context.
func NewProvider(version string, lister MethodLister, identity remote.Identity) *Provider {
	return &Provider{
		version:  version,
		lister:   lister,
		identity: identity,
		now:      time.Now,
	}
}

// Methods returns the built-in method descriptors keyed by qualified name.
func (p *Provider) Methods() map[string]*remote.MethodDescriptor {
	handlers := map[string]*remote.MethodDescriptor{
		"getVersion": {
			Return:  "string",
			Handler: p.getVersion,
		},
		"getTime": {
			Return:  "int",
			Handler: p.getTime,
		},
		"listMethods": {
			Return:  "array",
			Handler: p.listMethods,
		},
		"whoAmI": {
			Return:  "string",
			Public:  true,
			Handler: p.whoAmI,
		},
	}

	methods := make(map[string]*remote.MethodDescriptor, 2*len(handlers))
	for name, d := range handlers {
		methods["inkwell."+name] = d
		alias := *d
		methods["wiki."+name] = &alias
	}
	return methods
}

func (p *Provider) getVersion(ctx context.Context, args remote.Args) (any, error) {
	return p.version, nil
}

func (p *Provider) getTime(ctx context.Context, args remote.Args) (any, error) {
	return p.now().Unix(), nil
}

func (p *Provider) listMethods(ctx context.Context, args remote.Args) (any, error) {
	names, err := p.lister.MethodNames(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (p *Provider) whoAmI(ctx context.Context, args remote.Args) (any, error) {
	return p.identity.User, nil
}
