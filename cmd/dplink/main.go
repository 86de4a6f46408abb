// Command dplink trains and inspects simulated DisplayPort links.
package main

import "github.com/sarchlab/dplink/cmd"

func main() {
	cmd.Execute()
}
