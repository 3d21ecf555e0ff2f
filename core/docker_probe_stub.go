//go:build nodocker

package core

import (
	"fmt"
)

// NewDockerCheck is unavailable in nodocker builds. Configuring a docker
// check surfaces as a startup error rather than a silent no-op.
func NewDockerCheck(config CheckConfig) (Check, error) {
	return nil, fmt.Errorf("docker check %q: binary built without docker support", config.Name)
}
