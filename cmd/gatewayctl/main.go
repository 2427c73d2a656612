// Command gatewayctl is the command line client of the player ticket gateway.
package main

import "player-ticket-gateway/internal/cli"

func main() {
	cli.Execute()
}
