package catalog

import "os"

// Env is the source of credential values used by the capability gate.
type Env interface {
	LookupEnv(key string) (string, bool)
}

// OSEnv reads the process environment.
type OSEnv struct{}

func (OSEnv) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// MapEnv is an in-memory Env.
type MapEnv map[string]string

func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Layered consults each Env in order and returns the first non-empty value.
type Layered []Env

func (l Layered) LookupEnv(key string) (string, bool) {
	for _, env := range l {
		if env == nil {
			continue
		}
		if v, ok := env.LookupEnv(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
