package config

// ConfigBackend abstracts the platform-native config store. macOS keeps
// values in UserDefaults through the `defaults` CLI; everything else falls
// back to an XDG config file.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
