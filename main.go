package main

import (
	"github.com/KaramelBytes/vizqa/cmd"
	"github.com/KaramelBytes/vizqa/internal/sandbox"
)

func main() {
	// A re-executed sandbox child runs one script and exits here.
	sandbox.RunChild()
	cmd.Execute()
}
