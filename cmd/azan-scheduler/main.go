package main

import "github.com/oshokin/azan-scheduler/cmd/azan-scheduler/cmd"

func main() {
	cmd.Execute()
}
