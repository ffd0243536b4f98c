package main

import "github.com/rumor-ml/deckhand/cmd"

func main() {
	cmd.Execute()
}
