package main

import "github.com/encodeous/geonet/cmd"

func main() {
	cmd.Execute()
}
