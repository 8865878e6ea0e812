package main

import "github.com/MeKo-Tech/shapectx/cmd/shapectx/cmd"

func main() {
	cmd.Execute()
}
