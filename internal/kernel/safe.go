package kernel

import "fmt"

// runSafely runs one lifecycle hook and reports a panic inside it as an
// ordinary error, so a misbehaving module cannot take the process down.
// Both hook errors and recovered panics carry the scope tag.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
		}
	}()

	err = fn()
	if err != nil {
		err = fmt.Errorf("%s: %w", scope, err)
	}

	return err
}
