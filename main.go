package main

import "github.com/ovbagirov/berkat-crawler/cmd"

func main() {
	cmd.Execute()
}
