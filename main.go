package main

import "github.com/spaghettifunk/preloader/cmd"

func main() {
	cmd.Execute()
}
