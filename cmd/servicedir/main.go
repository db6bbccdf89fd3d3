package main

import "servicedir-etl/cmd/servicedir/cmd"

func main() {
	cmd.Execute()
}
