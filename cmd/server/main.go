package main

import "github.com/spawnx1/REALTIMETRACKING/server"

func main() {
	server.Main()
}
