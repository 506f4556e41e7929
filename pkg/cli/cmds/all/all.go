// Package all registers every operator command group.
package all

import (
	_ "github.com/robotalks/robofleet/pkg/cli/cmds/drive"
	_ "github.com/robotalks/robofleet/pkg/cli/cmds/ota"
)
