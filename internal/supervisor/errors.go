package supervisor

import "errors"

var (
	// ErrProcessing rejects the in-flight request when the process writes to
	// stderr while generating. The queue keeps going.
	ErrProcessing = errors.New("Error occurred while processing.")
	// ErrTerminated rejects every outstanding request when the process exits.
	ErrTerminated = errors.New("Process was terminated before completion.")
	// ErrRequestTimeout rejects a request that outlived Config.RequestTimeout.
	ErrRequestTimeout = errors.New("request timed out")
	// ErrUnknownTemplate rejects a request whose session names no known template.
	ErrUnknownTemplate = errors.New("unknown prompt template")
	// ErrSpawn wraps failures to start the llama.cpp process.
	ErrSpawn = errors.New("failed to start subprocess")
)

// notFoundError reports an unknown model or personality.
type notFoundError struct{ msg string }

func (e notFoundError) Error() string { return e.msg }

// ErrModelNotFound returns the error for a model name absent from the catalog.
func ErrModelNotFound(name string) error {
	return notFoundError{msg: "Model '" + name + "' does not exist."}
}

// ErrPersonalityNotFound returns the error for an unknown personality of model.
func ErrPersonalityNotFound(model, personality string) error {
	return notFoundError{msg: "Personality '" + personality + "' does not exist for model '" + model + "'."}
}

// IsNotFound reports whether err is a model or personality lookup failure.
func IsNotFound(err error) bool {
	var nf notFoundError
	return errors.As(err, &nf)
}

// IsTerminated reports whether err rejected a request because the process went away.
func IsTerminated(err error) bool { return errors.Is(err, ErrTerminated) }

// IsSpawn reports whether err came from starting the process.
func IsSpawn(err error) bool { return errors.Is(err, ErrSpawn) }
