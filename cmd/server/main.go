package main

import "go-userapi/internal/app"

func main() {
	app.Run()
}
