package main

import "gnarhub-backend/cmd"

func main() {
	cmd.Run()
}
