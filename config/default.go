package config

// DefaultConfig is the set of default parameters for the given package.
//
// A nil value means that the parameter has no default
// and has to be provided by the user.
type DefaultConfig struct {
	Title      string                 // package title
	Parameters map[string]interface{} // parameters
}
