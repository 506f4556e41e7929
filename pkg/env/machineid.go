package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

const appID = "robofleet"

// MachineID retrieves an ID identifying the machine, hashed for this
// application. Hosts without a machine id fall back to the hostname.
func MachineID() string {
	id, err := machineid.ProtectedID(appID)
	if err == nil {
		return id[:12]
	}
	if host, herr := os.Hostname(); herr == nil {
		return host
	}
	panic(err)
}
