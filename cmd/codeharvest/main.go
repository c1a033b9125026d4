// cmd/codeharvest/main.go
package main

import "codeharvest/internal/cli"

func main() {
	cli.Execute()
}
