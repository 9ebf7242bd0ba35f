package main

import (
	"pricelake/cmd/pricelake/commands"
	"pricelake/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
