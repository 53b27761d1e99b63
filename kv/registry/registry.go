package registry

import (
	"context"
	"net/url"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/internal/safe"
	"github.com/autom8ter/docstore/kv"
)

// KVDBOpener opens a key value database
type KVDBOpener func(ctx context.Context, params map[string]interface{}) (kv.DB, error)

var registeredOpeners = &safe.Map[KVDBOpener]{}

// Register registers a KVDBOpener by url scheme
func Register(name string, opener KVDBOpener) {
	registeredOpeners.Set(name, opener)
}

// Registered returns true if a provider is registered for the scheme
func Registered(name string) bool {
	return registeredOpeners.Exists(name)
}

// Names returns the registered schemes
func Names() []string {
	return registeredOpeners.Keys()
}

// Open opens a registered key value database
func Open(ctx context.Context, name string, params map[string]interface{}) (kv.DB, error) {
	opener, ok := registeredOpeners.Lookup(name)
	if !ok {
		return nil, errors.New(errors.NotFound, "%s is not registered", name)
	}
	return opener(ctx, params)
}

// OpenURL opens the database registered for the url's scheme, ex: badger:///tmp/data or redis://localhost:6379/0
func OpenURL(ctx context.Context, u *url.URL) (kv.DB, error) {
	return Open(ctx, u.Scheme, Params(u))
}

// Params converts a connection url into provider params. Query parameters are copied as is.
func Params(u *url.URL) map[string]interface{} {
	params := map[string]interface{}{
		"scheme": u.Scheme,
		"host":   u.Host,
		"path":   u.Path,
	}
	if u.User != nil {
		params["username"] = u.User.Username()
		if password, ok := u.User.Password(); ok {
			params["password"] = password
		}
	}
	for k, v := range u.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}
