package main

import "github.com/denysvitali/filemanager-go/cmd"

func main() {
	cmd.Execute()
}
